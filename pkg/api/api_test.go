package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"genre-swap/pkg/analysis"
	"genre-swap/pkg/audio"
	"genre-swap/pkg/capability"
	"genre-swap/pkg/capability/fake"
	"genre-swap/pkg/config"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/history"
	"genre-swap/pkg/mixer"
	"genre-swap/pkg/models"
	"genre-swap/pkg/pipeline"
	"genre-swap/pkg/separation"
	"genre-swap/pkg/storage"
	"genre-swap/pkg/transform"

	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	coord    *pipeline.Coordinator
	store    *storage.AudioStore
	splitter *fake.Splitter
}

func newTestServer(t *testing.T, splitDelay time.Duration) *testServer {
	t.Helper()
	store := storage.NewAudioStore(1<<30, nil, nil)
	registry := genre.NewRegistry(nil)
	splitter := &fake.Splitter{Delay: splitDelay}
	classifier := &fake.Classifier{Result: capability.Classification{
		GenreID: "pop", Confidence: 0.9, Rhythm: "pop_4/4", Scale: "major",
		Instruments: []string{"drums", "bass", "guitar"}, TempoBPM: 120, Key: "C major",
	}}
	processor := &fake.Processor{}

	coord := pipeline.NewCoordinator(pipeline.Deps{
		Store:     store,
		Registry:  registry,
		Separator: separation.NewSeparator(splitter, 0, nil),
		Analyzer:  analysis.NewAnalyzer(classifier, nil),
		Engine:    transform.NewEngine(processor, nil),
		Mixer:     mixer.NewMixer(nil),
		Assessor:  analysis.NewAssessor(classifier, nil),
	}, config.PipelineConfig{Workers: 2, QueueSize: 8}, nil)

	ledger, err := history.Open(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	coord.OnComplete(ledger.Record)
	if err := coord.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewHandlers(coord, store, registry, ledger, nil).Routes())
	t.Cleanup(func() {
		srv.Close()
		coord.Stop()
		ledger.Close()
	})
	return &testServer{Server: srv, coord: coord, store: store, splitter: splitter}
}

func sinePCM(seconds float64) []byte {
	frames := int(seconds * audio.SampleRate)
	samples := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := audio.Clip(8000 * math.Sin(2*math.Pi*220*float64(i)/audio.SampleRate))
		samples[2*i], samples[2*i+1] = v, v
	}
	return audio.SamplesToBytes(samples)
}

func (s *testServer) upload(t *testing.T, trackID string, pcm []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("track_id", trackID)
	fw, err := mw.CreateFormFile("audio", "track.pcm")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(pcm)
	mw.Close()

	resp, err := http.Post(s.URL+"/tracks", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func (s *testServer) requestSwap(t *testing.T, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(s.URL+"/swaps", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

type jobResponse struct {
	Job    models.SwapJob     `json:"job"`
	Result *models.SwapResult `json:"result"`
}

func (s *testServer) waitJob(t *testing.T, jobID string) jobResponse {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.URL + "/jobs/" + jobID)
		if err != nil {
			t.Fatal(err)
		}
		var jr jobResponse
		json.NewDecoder(resp.Body).Decode(&jr)
		resp.Body.Close()
		if jr.Job.Status.Terminal() {
			return jr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return jobResponse{}
}

func TestSwapLifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.upload(t, "song-1", sinePCM(4))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}

	resp, out := s.requestSwap(t, `{"track_id":"song-1","options":{"target_genre_id":"K-Pop"}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("swap status = %d", resp.StatusCode)
	}
	jobID, _ := out["job_id"].(string)
	key, _ := out["cache_key"].(string)
	if jobID == "" || key == "" {
		t.Fatalf("swap response = %v", out)
	}

	jr := s.waitJob(t, jobID)
	if jr.Job.Status != models.StatusDone || jr.Result == nil {
		t.Fatalf("job = %+v", jr.Job)
	}
	// omitted options keep their defaults
	if !jr.Job.Options.PreserveVocals || jr.Job.Options.TargetGenreID != "k-pop" {
		t.Errorf("options = %+v", jr.Job.Options)
	}

	resp, err := http.Get(s.URL + "/results/" + key)
	if err != nil {
		t.Fatal(err)
	}
	var res models.SwapResult
	json.NewDecoder(resp.Body).Decode(&res)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || res.ID != jr.Result.ID {
		t.Fatalf("result status = %d id = %s", resp.StatusCode, res.ID)
	}

	resp, err = http.Get(s.URL + "/assets/" + res.ResultAssetID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var head [12]byte
	resp.Body.Read(head[:])
	if resp.Header.Get("Content-Type") != "audio/wav" || string(head[:4]) != "RIFF" || string(head[8:12]) != "WAVE" {
		t.Errorf("asset is not a WAV file: %q %q", resp.Header.Get("Content-Type"), head)
	}

	// same request again is a cache hit
	_, again := s.requestSwap(t, `{"track_id":"song-1","options":{"target_genre_id":"k-pop"}}`)
	if again["cache_hit"] != true || again["status"] != string(models.StatusDone) {
		t.Errorf("second swap = %v, want cache hit", again)
	}
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"track_id":`, http.StatusBadRequest},
		{"missing genre", `{"track_id":"x","options":{}}`, http.StatusBadRequest},
		{"missing track id", `{"options":{"target_genre_id":"k_pop"}}`, http.StatusBadRequest},
		{"unknown track", `{"track_id":"nope","options":{"target_genre_id":"k_pop"}}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := s.requestSwap(t, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	for _, path := range []string{"/jobs/nope", "/results/nope", "/assets/nope"} {
		resp, err := http.Get(s.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodDelete, s.URL+"/jobs/nope", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("DELETE unknown job = %d, want 404", resp.StatusCode)
	}
}

func TestUploadRejectsEmptyAudio(t *testing.T) {
	s := newTestServer(t, 0)
	resp := s.upload(t, "empty", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadConflictingTrack(t *testing.T) {
	s := newTestServer(t, 0)
	s.upload(t, "song-3", sinePCM(2)).Body.Close()

	resp := s.upload(t, "song-3", sinePCM(2))
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("identical re-upload = %d, want 201", resp.StatusCode)
	}

	resp = s.upload(t, "song-3", sinePCM(3))
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("different audio under the same id = %d, want 409", resp.StatusCode)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	s := newTestServer(t, 300*time.Millisecond)
	s.upload(t, "song-2", sinePCM(4)).Body.Close()

	_, out := s.requestSwap(t, `{"track_id":"song-2","options":{"target_genre_id":"flamenco"}}`)
	jobID := out["job_id"].(string)

	req, _ := http.NewRequest(http.MethodDelete, s.URL+"/jobs/"+jobID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}

	jr := s.waitJob(t, jobID)
	if jr.Job.Status != models.StatusCancelled || jr.Result != nil {
		t.Errorf("job = %+v, want cancelled without result", jr.Job)
	}
}

func TestGenresDiscovery(t *testing.T) {
	s := newTestServer(t, 0)

	get := func(query string) (int, []models.GenreProfile) {
		resp, err := http.Get(s.URL + "/genres" + query)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out struct {
			Genres []models.GenreProfile `json:"genres"`
		}
		json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out.Genres
	}

	code, all := get("")
	if code != http.StatusOK || len(all) == 0 {
		t.Fatalf("list = %d, %d genres", code, len(all))
	}

	code, niche := get("?min_nicheness=7")
	if code != http.StatusOK || len(niche) == 0 || len(niche) >= len(all) {
		t.Fatalf("discover = %d, %d of %d genres", code, len(niche), len(all))
	}
	for i, p := range niche {
		if p.Nicheness < 7 {
			t.Errorf("%s nicheness %v below floor", p.ID, p.Nicheness)
		}
		if i > 0 && p.Nicheness > niche[i-1].Nicheness {
			t.Errorf("not sorted by nicheness at %d", i)
		}
	}

	if code, _ := get("?min_nicheness=high"); code != http.StatusBadRequest {
		t.Errorf("bad floor = %d, want 400", code)
	}
}

func TestWebSocketStreamsProgress(t *testing.T) {
	s := newTestServer(t, 50*time.Millisecond)
	s.upload(t, "song-3", sinePCM(4)).Body.Close()
	_, out := s.requestSwap(t, `{"track_id":"song-3","options":{"target_genre_id":"reggae"}}`)
	jobID := out["job_id"].(string)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/jobs/" + jobID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var percents []int
	var final WebSocketMessage
	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, percents)
		}
		if msg.Type == "progress" {
			percents = append(percents, msg.Percent)
			continue
		}
		final = msg
		break
	}

	want := []int{10, 30, 60, 80, 90, 100}
	if len(percents) != len(want) {
		t.Fatalf("percents = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Fatalf("percents = %v, want %v", percents, want)
		}
	}
	if final.Type != "complete" || final.Result == nil || final.JobID != jobID {
		t.Errorf("final = %+v", final)
	}
}

func TestHistoryRecordsFinishedJobs(t *testing.T) {
	s := newTestServer(t, 0)
	s.upload(t, "song-4", sinePCM(4)).Body.Close()
	_, out := s.requestSwap(t, `{"track_id":"song-4","options":{"target_genre_id":"celtic"}}`)
	s.waitJob(t, out["job_id"].(string))

	var entries []history.Entry
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(s.URL + "/history?track_id=song-4")
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			Entries []history.Entry `json:"entries"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if entries = body.Entries; len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if e := entries[0]; e.Status != "done" || e.GenreID != "celtic" || e.ResultID == "" {
		t.Errorf("entry = %+v", e)
	}
}
