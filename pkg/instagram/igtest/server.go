// Package igtest provides an in-process fake of the Instagram web API
// endpoints the bot talks to.
package igtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"igrepost/pkg/instagram"
)

// SessionID is the session cookie the fake accepts
const SessionID = "test-session"

// Upload is a video received on the rupload endpoint
type Upload struct {
	EntityName string
	UploadID   string
	Data       []byte
}

// Publish is a configure_to_clips call that produced a reel
type Publish struct {
	UploadID string
	Caption  string
	ToFeed   bool
}

// Server is a fake Instagram API backed by httptest
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	owner       string
	threads     []instagram.Thread
	media       map[string]instagram.Media
	videos      map[string][]byte
	uploads     []Upload
	published   []Publish
	transcoding int
	failures    map[string][]failure
	requests    map[string]int
	loginState  string
}

type failure struct {
	status  int
	message string
}

// New starts a fake with an empty inbox owned by "reposter"
func New() *Server {
	s := &Server{
		owner:    "reposter",
		media:    make(map[string]instagram.Media),
		videos:   make(map[string][]byte),
		failures: make(map[string][]failure),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+instagram.CurrentUserEndpoint, s.session(s.handleCurrentUser))
	mux.HandleFunc("GET "+instagram.InboxEndpoint, s.session(s.handleInbox))
	mux.HandleFunc("GET /api/v1/media/{ref}/info/", s.session(s.handleMediaInfo))
	mux.HandleFunc("POST /rupload_igvideo/{name}", s.session(s.handleRupload))
	mux.HandleFunc("POST "+instagram.ConfigureEndpoint, s.session(s.handleConfigure))
	mux.HandleFunc("GET /videos/{name}", s.handleVideo)

	s.Server = httptest.NewServer(mux)
	return s
}

// Session returns a session the fake accepts
func (s *Server) Session() instagram.Session {
	return instagram.Session{SessionID: SessionID, CSRFToken: "test-csrf", DSUserID: "1"}
}

// AddThread appends a direct thread to the inbox
func (s *Server) AddThread(t instagram.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = append(s.threads, t)
}

// SetMedia registers media info under a shortcode or media id
func (s *Server) SetMedia(ref string, m instagram.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[ref] = m
}

// AddVideo serves data as a CDN video and returns its URL
func (s *Server) AddVideo(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[name] = data
	return s.URL + "/videos/" + name
}

// AddReel registers a reel with media info and a downloadable video and
// returns the media as it would appear in a media_share item.
func (s *Server) AddReel(shortcode, pk, creator, caption string, video []byte) instagram.Media {
	m := instagram.Media{
		PK:            instagram.ID(pk),
		Code:          shortcode,
		MediaType:     instagram.MediaTypeVideo,
		ProductType:   instagram.ProductTypeClips,
		User:          &instagram.MediaUser{Username: creator},
		VideoVersions: []instagram.VideoVersion{{URL: s.AddVideo(shortcode+".mp4", video)}},
	}
	if caption != "" {
		m.Caption = &instagram.Caption{Text: caption}
	}
	s.SetMedia(shortcode, m)
	return m
}

// Fail makes the next call to path answer status with message. Calls are
// queued, so failing twice fails the next two requests.
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, message: message})
}

// SetTranscoding makes configure answer 202 for the next n calls
func (s *Server) SetTranscoding(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcoding = n
}

// ExpireSession makes every API call fail with message, e.g.
// "login_required" or "challenge_required"; "" restores the session.
func (s *Server) ExpireSession(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginState = message
}

// Uploads returns the videos received so far
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Published returns the reels configured so far
func (s *Server) Published() []Publish {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Publish(nil), s.published...)
}

// Requests returns how many requests hit path
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) session(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		state := s.loginState
		var fail *failure
		if queued := s.failures[r.URL.Path]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[r.URL.Path] = queued[1:]
		}
		s.mu.Unlock()

		if fail != nil {
			writeJSON(w, fail.status, map[string]string{"status": "fail", "message": fail.message})
			return
		}

		cookie, err := r.Cookie("sessionid")
		if err != nil || cookie.Value != SessionID || state != "" {
			msg := state
			if msg == "" {
				msg = "login_required"
			}
			status := http.StatusForbidden
			if msg == "challenge_required" {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]string{"status": "fail", "message": msg})
			return
		}
		if r.Header.Get("X-IG-App-ID") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "fail", "message": "missing app id"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"user":   map[string]string{"pk": "1", "username": owner},
	})
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	threads := append([]instagram.Thread(nil), s.threads...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, instagram.InboxResponse{
		Inbox:  instagram.Inbox{Threads: threads},
		Status: "ok",
	})
}

func (s *Server) handleMediaInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	m, ok := s.media[r.PathValue("ref")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "fail", "message": "Media not found or unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, instagram.MediaInfoResponse{Items: []instagram.Media{m}, Status: "ok"})
}

func (s *Server) handleRupload(w http.ResponseWriter, r *http.Request) {
	var params struct {
		UploadID     string `json:"upload_id"`
		IsClipsVideo string `json:"is_clips_video"`
	}
	if err := json.Unmarshal([]byte(r.Header.Get("X-Instagram-Rupload-Params")), &params); err != nil || params.UploadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "fail", "message": "bad rupload params"})
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "fail", "message": err.Error()})
		return
	}
	if want := r.Header.Get("X-Entity-Length"); want != strconv.Itoa(len(data)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "fail",
			"message": fmt.Sprintf("entity length %s, got %d bytes", want, len(data)),
		})
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{EntityName: r.PathValue("name"), UploadID: params.UploadID, Data: data})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "upload_id": params.UploadID})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "fail", "message": err.Error()})
		return
	}
	uploadID := r.PostForm.Get("upload_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	known := false
	for _, u := range s.uploads {
		if u.UploadID == uploadID {
			known = true
			break
		}
	}
	if !known {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "fail", "message": "unknown upload_id"})
		return
	}
	if s.transcoding > 0 {
		s.transcoding--
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "fail", "message": "Transcode not finished yet."})
		return
	}

	s.published = append(s.published, Publish{
		UploadID: uploadID,
		Caption:  r.PostForm.Get("caption"),
		ToFeed:   r.PostForm.Get("clips_share_preview_to_feed") == "1",
	})
	code := fmt.Sprintf("POST%d", len(s.published))
	writeJSON(w, http.StatusOK, instagram.ConfigureResponse{
		Status: "ok",
		Media: &instagram.Media{
			PK:        instagram.ID(uploadID),
			Code:      code,
			MediaType: instagram.MediaTypeVideo,
		},
	})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("sessionid"); err == nil {
		http.Error(w, "cookies sent to cdn", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	data, ok := s.videos[r.PathValue("name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
