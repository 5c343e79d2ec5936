package httpapi

import (
	"net/http"

	"callme/internal/users"

	"github.com/gin-gonic/gin"
)

type updateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type pushTokenRequest struct {
	Kind  string `json:"kind"`
	Token string `json:"token"`
}

type matchRequest struct {
	Phones []string `json:"phones"`
}

func (h Handlers) Me(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), phone)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (h Handlers) UpdateMe(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.Users.UpdateProfile(c.Request.Context(), phone, req.Name, req.AvatarURL)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// SetPushToken stores a device token. An empty token removes the credential of
// that kind. kind defaults to standard.
func (h Handlers) SetPushToken(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	kind := users.CredentialStandard
	if req.Kind != "" {
		kind = users.CredentialKind(req.Kind)
	}

	var err error
	if req.Token == "" {
		err = h.Users.RemovePushCredential(c.Request.Context(), phone, kind)
	} else {
		err = h.Users.SetPushCredential(c.Request.Context(), phone, kind, req.Token)
	}
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h Handlers) MatchContacts(c *gin.Context) {
	if _, ok := callerPhone(c); !ok {
		return
	}
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	matched, err := h.Users.MatchContacts(c.Request.Context(), req.Phones)
	if err != nil {
		failErr(c, err)
		return
	}
	if matched == nil {
		matched = []users.ContactMatch{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "matched": matched})
}
