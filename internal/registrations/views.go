package registrations

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-lms/registration/pkg/response"
)

// View names a page of the registration flow, selected by the "view" query parameter.
type View string

const (
	ViewForm    View = "form"
	ViewReview  View = "review"
	ViewConfirm View = "confirm"
	ViewEdit    View = "edit"
	ViewUsers   View = "users"
)

// ViewRegistry maps each view to the handler chain that renders it.
type ViewRegistry map[View][]gin.HandlerFunc

// NewViewRegistry wires the views to h. requireAdmin guards the users view.
func NewViewRegistry(h *Handler, requireAdmin ...gin.HandlerFunc) ViewRegistry {
	return ViewRegistry{
		ViewForm:    {h.RenderForm},
		ViewReview:  {h.RenderReview},
		ViewConfirm: {h.RenderConfirm},
		ViewEdit:    {h.RenderEdit},
		ViewUsers:   append(append([]gin.HandlerFunc{}, requireAdmin...), h.List),
	}
}

// Dispatch handles GET /registration?view=... The form view is the default.
func (r ViewRegistry) Dispatch(c *gin.Context) {
	v := View(c.DefaultQuery("view", string(ViewForm)))
	chain, ok := r[v]
	if !ok {
		response.NotFound(c, "View not found.")
		return
	}
	for _, h := range chain {
		h(c)
		if c.IsAborted() {
			return
		}
	}
}
