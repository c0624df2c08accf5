// Package boxtest provides an in-memory Box API served over httptest for tests.
package boxtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/Lllllllleong/boxdocumentsorter/internal/box"
)

// Item is a stored folder or file.
type Item struct {
	ID       string
	Name     string
	Type     string
	ParentID string
	Size     int64
}

// Server fakes the subset of Box used by this repository.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	items    map[string]*Item
	order    []string
	content  map[string][]byte
	sessions map[string]*session
	nextID   int
	requests []string
	tokens   []string
	valid    map[string]bool // nil accepts every token
	users    map[string]string

	// FailCreate lists folder names whose creation answers 500.
	FailCreate map[string]bool
	// FailList lists folder ids whose listing answers 500.
	FailList map[string]bool
	// FailMove lists file ids whose move answers 500.
	FailMove map[string]bool
	// FailDownload lists file ids whose download answers 500.
	FailDownload map[string]bool
	// FailUploads makes every upload answer 500.
	FailUploads bool
	// PartSize is the part size handed out by upload sessions.
	PartSize int64
}

type session struct {
	folderID string
	name     string
	size     int64
	parts    map[int64][]byte
}

// New starts a server holding only the root folder "0".
func New() *Server {
	s := &Server{
		items:        map[string]*Item{"0": {ID: "0", Name: "All Files", Type: "folder"}},
		order:        []string{"0"},
		content:      map[string][]byte{},
		sessions:     map[string]*session{},
		users:        map[string]string{},
		nextID:       100,
		FailCreate:   map[string]bool{},
		FailList:     map[string]bool{},
		FailMove:     map[string]bool{},
		FailDownload: map[string]bool{},
		PartSize:     8,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Config returns a box.Config pointing at the fake.
func (s *Server) Config() box.Config {
	return box.Config{
		APIBaseURL:    s.URL + "/2.0",
		UploadBaseURL: s.URL + "/upload",
		HTTPClient:    s.Client(),
	}
}

func (s *Server) newID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

func (s *Server) add(parentID, name, typ string, data []byte) string {
	id := s.newID()
	s.items[id] = &Item{ID: id, Name: name, Type: typ, ParentID: parentID, Size: int64(len(data))}
	s.order = append(s.order, id)
	if typ == "file" {
		s.content[id] = append([]byte(nil), data...)
	}
	return id
}

// AddFolder creates a folder and returns its id.
func (s *Server) AddFolder(parentID, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(parentID, name, "folder", nil)
}

// AddFile creates a file and returns its id.
func (s *Server) AddFile(parentID, name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(parentID, name, "file", data)
}

// Parent returns the parent id of an item.
func (s *Server) Parent(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[id]; ok {
		return it.ParentID
	}
	return ""
}

// Children returns the items directly under parentID in creation order.
func (s *Server) Children(parentID string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children(parentID)
}

func (s *Server) children(parentID string) []Item {
	var out []Item
	for _, id := range s.order {
		if it := s.items[id]; it.ParentID == parentID && id != "0" {
			out = append(out, *it)
		}
	}
	return out
}

// Child finds a direct child by name.
func (s *Server) Child(parentID, name string) (Item, bool) {
	for _, it := range s.Children(parentID) {
		if it.Name == name {
			return it, true
		}
	}
	return Item{}, false
}

// Content returns a stored file's bytes.
func (s *Server) Content(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content[id]
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests counts requests whose "METHOD path" starts with prefix.
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// AllowTokens restricts the accepted bearer tokens to tokens. Without a call
// every token is accepted.
func (s *Server) AllowTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = map[string]bool{}
	for _, t := range tokens {
		s.valid[t] = true
	}
}

// RevokeToken stops accepting token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid == nil {
		s.valid = map[string]bool{}
	}
	delete(s.valid, token)
}

// SetUser makes users/me answer userID for token. Tokens without a user
// answer DefaultUserID.
func (s *Server) SetUser(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = userID
}

// DefaultUserID is the user behind tokens that were not given one.
const DefaultUserID = "11446498"

// Tokens returns the bearer token of every request received.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

type wireItem struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Size       int64             `json:"size"`
	CreatedAt  string            `json:"created_at"`
	ModifiedAt string            `json:"modified_at"`
	Parent     map[string]string `json:"parent,omitempty"`
}

func (it Item) wire() wireItem {
	w := wireItem{
		Type:       it.Type,
		ID:         it.ID,
		Name:       it.Name,
		Size:       it.Size,
		CreatedAt:  "2024-01-02T03:04:05Z",
		ModifiedAt: "2024-01-02T03:04:05Z",
	}
	if it.ParentID != "" {
		w.Parent = map[string]string{"type": "folder", "id": it.ParentID}
	}
	return w
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"type": "error", "status": status, "code": code, "message": msg})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.tokens = append(s.tokens, token)
	if s.valid != nil && !s.valid[token] {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/2.0/folders"):
		s.handleFolders(w, r, strings.Trim(strings.TrimPrefix(path, "/2.0/folders"), "/"))
	case strings.HasPrefix(path, "/2.0/files/"):
		s.handleFiles(w, r, strings.Trim(strings.TrimPrefix(path, "/2.0/files/"), "/"))
	case path == "/2.0/users/me" && r.Method == http.MethodGet:
		id, ok := s.users[token]
		if !ok {
			id = DefaultUserID
		}
		writeJSON(w, http.StatusOK, map[string]string{"type": "user", "id": id, "name": "User " + id, "login": id + "@example.com"})
	case path == "/upload/files/content" && r.Method == http.MethodPost:
		s.handleMultipartUpload(w, r)
	case strings.HasPrefix(path, "/upload/files/upload_sessions"):
		s.handleSessions(w, r, strings.Trim(strings.TrimPrefix(path, "/upload/files/upload_sessions"), "/"))
	default:
		writeError(w, http.StatusNotFound, "not_found", path)
	}
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" && r.Method == http.MethodPost {
		var body struct {
			Name   string `json:"name"`
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if s.FailCreate[body.Name] {
			writeError(w, http.StatusInternalServerError, "internal_server_error", "create failed")
			return
		}
		for _, c := range s.children(body.Parent.ID) {
			if c.Name == body.Name {
				writeError(w, http.StatusConflict, "item_name_in_use", "Item with the same name already exists")
				return
			}
		}
		id := s.add(body.Parent.ID, body.Name, "folder", nil)
		writeJSON(w, http.StatusCreated, s.items[id].wire())
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	folder, ok := s.items[id]
	if !ok || folder.Type != "folder" {
		writeError(w, http.StatusNotFound, "not_found", "folder "+id)
		return
	}
	if sub == "" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, folder.wire())
		return
	}
	if sub == "items" && r.Method == http.MethodGet {
		if s.FailList[id] {
			writeError(w, http.StatusInternalServerError, "internal_server_error", "list failed")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if limit <= 0 {
			limit = 100
		}
		all := s.children(id)
		entries := []wireItem{}
		for i := offset; i < len(all) && i < offset+limit; i++ {
			entries = append(entries, all[i].wire())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_count": len(all),
			"entries":     entries,
			"offset":      offset,
			"limit":       limit,
		})
		return
	}
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request, rest string) {
	id, sub, _ := strings.Cut(rest, "/")
	file, ok := s.items[id]
	if !ok || file.Type != "file" {
		writeError(w, http.StatusNotFound, "not_found", "file "+id)
		return
	}
	switch {
	case sub == "content" && r.Method == http.MethodGet:
		if s.FailDownload[id] {
			writeError(w, http.StatusInternalServerError, "internal_server_error", "download failed")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(s.content[id])
	case sub == "" && r.Method == http.MethodPut:
		if s.FailMove[id] {
			writeError(w, http.StatusInternalServerError, "internal_server_error", "move failed")
			return
		}
		var body struct {
			Parent struct {
				ID string `json:"id"`
			} `json:"parent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		if _, ok := s.items[body.Parent.ID]; !ok {
			writeError(w, http.StatusNotFound, "not_found", "folder "+body.Parent.ID)
			return
		}
		file.ParentID = body.Parent.ID
		writeJSON(w, http.StatusOK, file.wire())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
	}
}

func (s *Server) store(w http.ResponseWriter, parentID, name string, data []byte) {
	if s.FailUploads {
		writeError(w, http.StatusInternalServerError, "internal_server_error", "upload failed")
		return
	}
	for _, c := range s.children(parentID) {
		if c.Name == name {
			writeError(w, http.StatusConflict, "item_name_in_use", "Item with the same name already exists")
			return
		}
	}
	id := s.add(parentID, name, "file", data)
	writeJSON(w, http.StatusCreated, map[string]any{"total_count": 1, "entries": []wireItem{s.items[id].wire()}})
}

func (s *Server) handleMultipartUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var attrs struct {
		Name   string `json:"name"`
		Parent struct {
			ID string `json:"id"`
		} `json:"parent"`
	}
	if err := json.Unmarshal([]byte(r.FormValue("attributes")), &attrs); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	s.store(w, attrs.Parent.ID, attrs.Name, data)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" && r.Method == http.MethodPost {
		var body struct {
			FolderID string `json:"folder_id"`
			FileSize int64  `json:"file_size"`
			FileName string `json:"file_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		id := "session-" + s.newID()
		s.sessions[id] = &session{folderID: body.FolderID, name: body.FileName, size: body.FileSize, parts: map[int64][]byte{}}
		total := (body.FileSize + s.PartSize - 1) / s.PartSize
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "part_size": s.PartSize, "total_parts": total})
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	sess, ok := s.sessions[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "session "+id)
		return
	}
	switch {
	case sub == "" && r.Method == http.MethodPut:
		var start, end, total int64
		if _, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "content-range")
			return
		}
		data, _ := io.ReadAll(r.Body)
		sess.parts[start] = data
		writeJSON(w, http.StatusOK, map[string]any{"part": map[string]any{
			"part_id": fmt.Sprintf("%08X", start), "offset": start, "size": len(data), "sha1": "",
		}})
	case sub == "commit" && r.Method == http.MethodPost:
		var data []byte
		for off := int64(0); off < sess.size; {
			p, ok := sess.parts[off]
			if !ok {
				writeError(w, http.StatusBadRequest, "missing_part", strconv.FormatInt(off, 10))
				return
			}
			data = append(data, p...)
			off += int64(len(p))
		}
		delete(s.sessions, id)
		s.store(w, sess.folderID, sess.name, data)
	case sub == "" && r.Method == http.MethodDelete:
		delete(s.sessions, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method)
	}
}
