package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exchanges shared passphrases for role tokens. Identity is only
// used to label who changed a slot.
type Handler struct {
	issuer          *Issuer
	staffPassphrase string
	adminPassphrase string
}

func NewHandler(issuer *Issuer, staffPassphrase, adminPassphrase string) *Handler {
	return &Handler{
		issuer:          issuer,
		staffPassphrase: staffPassphrase,
		adminPassphrase: adminPassphrase,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/anonymous", h.SignInAnonymous)
	g.POST("/staff", h.SignInStaff)
	g.POST("/admin", h.SignInAdmin)
}

type signInRequest struct {
	Passphrase string `json:"passphrase" validate:"required"`
	Name       string `json:"name" validate:"omitempty,max=64"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) respond(c echo.Context, subject, name string, roles []string) error {
	tok, exp, err := h.issuer.Issue(subject, name, roles)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: tok, Subject: subject, Roles: roles, ExpiresAt: exp})
}

// SignInAnonymous issues a read-only viewer token for monitor and driver
// screens.
func (h *Handler) SignInAnonymous(c echo.Context) error {
	return h.respond(c, "anon-"+uuid.New().String(), "", []string{RoleViewer})
}

func (h *Handler) SignInStaff(c echo.Context) error {
	return h.passphraseSignIn(c, h.staffPassphrase, "staff", RoleStaff)
}

func (h *Handler) SignInAdmin(c echo.Context) error {
	return h.passphraseSignIn(c, h.adminPassphrase, "admin", RoleAdmin)
}

func (h *Handler) passphraseSignIn(c echo.Context, want, prefix, role string) error {
	if want == "" {
		return echo.NewHTTPError(http.StatusForbidden, role+" sign-in is disabled")
	}
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(req.Passphrase), []byte(want)) != 1 {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid passphrase")
	}

	name := strings.TrimSpace(req.Name)
	subject := prefix + ":" + uuid.New().String()
	if name != "" {
		subject = prefix + ":" + name
	}
	return h.respond(c, subject, name, []string{role})
}
