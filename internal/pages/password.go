package pages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/notify"
	"github.com/jetsetgo/warehouse-console/internal/session"
)

// PasswordChange is the submitted change-password form. The target fields
// are honoured for administrators only.
type PasswordChange struct {
	OldPassword    string
	NewPassword    string
	TargetUserID   string
	TargetUsername string
}

// PasswordResult is the inline message shown under the form.
type PasswordResult struct {
	OK      bool
	Message string
}

// ChangePassword changes the caller's password, or another user's when the
// caller is an administrator.
func (c *Controller) ChangePassword(ctx context.Context, req PasswordChange) (PasswordResult, error) {
	if err := c.sess.RequireAuth(); err != nil {
		return PasswordResult{}, err
	}
	user, _ := c.sess.User()
	isAdmin := user.Role == session.RoleAdmin

	oldPassword := strings.TrimSpace(req.OldPassword)
	newPassword := strings.TrimSpace(req.NewPassword)
	targetID := strings.TrimSpace(req.TargetUserID)
	targetName := strings.TrimSpace(req.TargetUsername)

	if !isAdmin && (targetID != "" || targetName != "") {
		c.center.Notify(notify.LevelError, "Only administrators can reset another user's password", "")
		return PasswordResult{}, fmt.Errorf("%w: reset another user's password", session.ErrForbidden)
	}
	if least := c.login.NewPasswordMinLength; len([]rune(newPassword)) < least {
		msg := "New password must be at least " + strconv.Itoa(least) + " characters"
		c.center.Notify(notify.LevelWarning, msg, "")
		return PasswordResult{}, ValidationErrors{{Field: "newPassword", Message: msg}}
	}

	payload := gateway.Payload{
		"action":      "changePassword",
		"newPassword": newPassword,
	}
	if oldPassword != "" {
		payload["oldPassword"] = oldPassword
	}
	if isAdmin && targetID != "" {
		payload["targetUserId"] = targetID
	}
	if isAdmin && targetName != "" {
		payload["targetUsername"] = targetName
	}

	release := c.loading.Begin()
	defer release()

	resp, err := c.sess.Call(ctx, config.EndpointUsers, gateway.MethodPost, payload)
	if err != nil {
		c.center.Notify(notify.LevelError, "Failed to change password, please try again later", "")
		return PasswordResult{}, fmt.Errorf("change password: %w", err)
	}

	ok := resp.Succeeded()
	msg := resp.Message()
	if msg == "" {
		msg = "Update failed"
		if ok {
			msg = "Password updated"
		}
	}
	return PasswordResult{OK: ok, Message: msg}, nil
}
