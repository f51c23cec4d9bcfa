package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"flashplay/models"
)

type fakeStreamService struct {
	movieResp  *models.StreamResponse
	movieErr   error
	seriesResp *models.StreamResponse
	seriesErr  error

	lastMovieID    string
	lastSeriesID   string
	lastSeason     int
	lastEpisode    int
	movieCalled    bool
	seriesCalled   bool
}

func (f *fakeStreamService) ExtractMovie(_ context.Context, tmdbID string) (*models.StreamResponse, error) {
	f.movieCalled = true
	f.lastMovieID = tmdbID
	return f.movieResp, f.movieErr
}

func (f *fakeStreamService) ExtractSeries(_ context.Context, tmdbID string, season, episode int) (*models.StreamResponse, error) {
	f.seriesCalled = true
	f.lastSeriesID = tmdbID
	f.lastSeason = season
	f.lastEpisode = episode
	return f.seriesResp, f.seriesErr
}

func newStreamsRouter(svc *fakeStreamService) *mux.Router {
	r := mux.NewRouter()
	NewStreamsHandler(svc).Register(r)
	return r
}

func TestStreamsMovieSuccess(t *testing.T) {
	svc := &fakeStreamService{
		movieResp: &models.StreamResponse{
			Sources: []models.StreamSource{{URL: "https://cdn.test/master.m3u8", Quality: "auto", Type: "hls"}},
		},
	}
	r := newStreamsRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/movie/603692", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastMovieID != "603692" {
		t.Errorf("tmdb id = %q", svc.lastMovieID)
	}

	var resp models.StreamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Sources) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStreamsMovieFallback(t *testing.T) {
	svc := &fakeStreamService{movieErr: errors.New("all providers failed")}
	r := newStreamsRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/movie/603692", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	var resp models.StreamResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || !resp.Fallback {
		t.Fatalf("expected fallback response, got %+v", resp)
	}
}

func TestStreamsSeriesParamsParsed(t *testing.T) {
	svc := &fakeStreamService{
		seriesResp: &models.StreamResponse{
			Sources: []models.StreamSource{{URL: "https://cdn.test/ep.m3u8"}},
		},
	}
	r := newStreamsRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/series/1399/2/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastSeriesID != "1399" || svc.lastSeason != 2 || svc.lastEpisode != 7 {
		t.Errorf("parsed %q S%dE%d", svc.lastSeriesID, svc.lastSeason, svc.lastEpisode)
	}
}

func TestStreamsSeriesInvalidParams(t *testing.T) {
	svc := &fakeStreamService{}
	r := newStreamsRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/series/1399/zero/7", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if svc.seriesCalled {
		t.Error("service must not be called with invalid params")
	}
}

func TestStreamsHealth(t *testing.T) {
	r := newStreamsRouter(&fakeStreamService{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "stream-extractor" {
		t.Errorf("unexpected health body %v", body)
	}
}
