package explorer

import (
	"strings"

	"github.com/Lllllllleong/boxdocumentsorter/internal/models"
)

// History is the ordered breadcrumb trail of a browsing session.
type History struct {
	crumbs []models.Crumb
}

// NewHistory restores a trail, e.g. one the browser sent back.
func NewHistory(trail []models.Crumb) *History {
	return &History{crumbs: append([]models.Crumb(nil), trail...)}
}

func (h *History) pathFor(name string) string {
	names := make([]string, 0, len(h.crumbs)+1)
	for _, c := range h.crumbs {
		names = append(names, c.Name)
	}
	return strings.Join(append(names, name), " / ")
}

// Push appends a folder the user descended into.
func (h *History) Push(id, name string) models.Crumb {
	c := models.Crumb{ID: id, Name: name, Path: h.pathFor(name)}
	h.crumbs = append(h.crumbs, c)
	return c
}

// JumpTo truncates the trail so index is the last crumb. Out-of-range indexes are ignored.
func (h *History) JumpTo(index int) {
	if index < 0 || index >= len(h.crumbs) {
		return
	}
	h.crumbs = h.crumbs[:index+1]
}

// IndexOf returns the position of id in the trail, or -1.
func (h *History) IndexOf(id string) int {
	for i, c := range h.crumbs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Navigate moves to folder id: a jump when it is already on the trail, a push otherwise.
func (h *History) Navigate(id, name string) {
	if i := h.IndexOf(id); i >= 0 {
		h.JumpTo(i)
		return
	}
	h.Push(id, name)
}

// Current returns the last crumb.
func (h *History) Current() (models.Crumb, bool) {
	if len(h.crumbs) == 0 {
		return models.Crumb{}, false
	}
	return h.crumbs[len(h.crumbs)-1], true
}

// Crumbs returns a copy of the trail.
func (h *History) Crumbs() []models.Crumb {
	return append([]models.Crumb{}, h.crumbs...)
}
