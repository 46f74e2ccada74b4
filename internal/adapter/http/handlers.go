package http

import (
	"net/http"

	"github.com/couchcryptid/bloom-risk-service/internal/domain"
	"github.com/couchcryptid/bloom-risk-service/internal/pipeline"
)

const defaultForecastDays = 7

func (s *Server) handleCrops(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, r, http.StatusOK, map[string][]string{"crops": s.analyzer.Crops()})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, r, http.StatusOK, map[string][]domain.Location{"regions": s.analyzer.Regions()})
}

func (s *Server) handlePhenology(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years, err := queryInt(q, "years")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	enrich, err := queryBool(q, "enrich")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	anomalies, err := queryBool(q, "anomalies")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.AnalyzePhenology(r.Context(), pipeline.PhenologyRequest{
		Crop:      q.Get("crop"),
		Location:  loc,
		Years:     years,
		Enrich:    enrich,
		Anomalies: anomalies,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toPhenology(out))
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	years, err := queryInt(q, "years")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.Anomalies(r.Context(), pipeline.AnomalyRequest{Crop: q.Get("crop"), Location: loc, Years: years})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toAnomalyReport(out))
}

func (s *Server) handleCurrentRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := queryDate(q, "date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.CurrentRisk(r.Context(), pipeline.RiskRequest{
		Crop:     q.Get("crop"),
		Date:     date,
		Location: loc,
		Mode:     q.Get("provider"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toRiskAssessment(out))
}

func (s *Server) handleRiskTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := queryDate(q, "start")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := queryDate(q, "end")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.RiskTimeline(r.Context(), pipeline.TimelineRequest{
		Crop:     q.Get("crop"),
		Start:    start,
		End:      end,
		Location: loc,
		Mode:     q.Get("provider"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toTimeline(out))
}

func (s *Server) handleRiskMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := queryDate(q, "date")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.RiskMap(r.Context(), q.Get("crop"), date, q.Get("provider"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toRiskMap(out))
}

func (s *Server) handleCurrentWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.CurrentWeather(r.Context(), q.Get("provider"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, out)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "days")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if q.Get("days") == "" {
		days = defaultForecastDays
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.WeatherForecast(r.Context(), q.Get("provider"), loc, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, forecastDTO{Days: len(out), Forecast: toForecast(out)})
}

func (s *Server) handleIrrigation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := queryInt(q, "days")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.queryLocation(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.Irrigation(r.Context(), pipeline.IrrigationRequest{
		Crop:     q.Get("crop"),
		Location: loc,
		Mode:     q.Get("provider"),
		Days:     days,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, toIrrigationPlan(out))
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, r, http.StatusOK, s.providers.Status())
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	loc, err := s.queryLocation(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.analyzer.CompareSources(r.Context(), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, out)
}
