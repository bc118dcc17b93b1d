package web

import (
	"net/http"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/form"
	"github.com/yanizio/bookshelf/internal/gate"
	"github.com/yanizio/bookshelf/internal/session"
)

//
// Login
//

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if manager(r).IsAuthenticated() {
		redirect(w, r, gate.Home.Pattern)
		return
	}
	p := h.page(r, "Log in")
	if r.URL.Query().Get("registered") != "" {
		p.Notice = session.NoticeRegistered
	}
	h.render(w, r, http.StatusOK, "login", p)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	creds := session.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	out, err := manager(r).Login(r.Context(), creds)
	if err != nil {
		p := h.page(r, "Log in")
		p.Form = formValues(r, "username")
		h.fail(w, r, "login", p, err)
		return
	}
	redirect(w, r, out.Navigate)
}

//
// Register
//

func (h *Handler) registerForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", h.page(r, "Register"))
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	s := session.Signup{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	out, err := manager(r).Register(r.Context(), s)
	if err != nil {
		p := h.page(r, "Register")
		p.Form = formValues(r, "username", "email")
		h.fail(w, r, "register", p, err)
		return
	}
	target := out.Navigate
	if out.Notice != "" {
		target += "?registered=1"
	}
	redirect(w, r, target)
}

//
// Logout
//

func (h *Handler) logoutForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "logout", h.page(r, "Log out"))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	out, err := manager(r).Logout(r.Context())
	if err != nil {
		h.fail(w, r, "logout", h.page(r, "Log out"), err)
		return
	}
	redirect(w, r, out.Navigate)
}

//
// User details
//

func (h *Handler) userDetails(w http.ResponseWriter, r *http.Request) {
	d, err := manager(r).API().UserDetails(r.Context())
	p := h.page(r, "Your account")
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	p.Data = d
	h.render(w, r, http.StatusOK, "user_details", p)
}

// profileForm is the user edit form.
type profileForm struct {
	FirstName      string `form:"first_name" validate:"max=150"`
	LastName       string `form:"last_name" validate:"max=150"`
	Email          string `form:"email" validate:"omitempty,email,max=254"`
	ProfilePicture string `form:"profile_picture" validate:"omitempty,url"`
	Gender         string `form:"gender" validate:"omitempty,oneof=Female Male Other"`
}

var profileFields = []string{"first_name", "last_name", "email", "profile_picture", "gender"}

func (h *Handler) editUserForm(w http.ResponseWriter, r *http.Request) {
	d, err := manager(r).API().UserDetails(r.Context())
	p := h.page(r, "Edit profile")
	if err != nil {
		h.fail(w, r, "error", p, err)
		return
	}
	p.Form = map[string]string{
		"first_name":      deref(d.Profile.FirstName),
		"last_name":       deref(d.Profile.LastName),
		"email":           d.User.Email,
		"profile_picture": deref(d.Profile.ProfilePicture),
		"gender":          deref(d.Profile.Gender),
	}
	p.Data = api.Genders
	h.render(w, r, http.StatusOK, "user_edit", p)
}

func (h *Handler) editUser(w http.ResponseWriter, r *http.Request) {
	f := profileForm{
		FirstName:      r.PostFormValue("first_name"),
		LastName:       r.PostFormValue("last_name"),
		Email:          r.PostFormValue("email"),
		ProfilePicture: r.PostFormValue("profile_picture"),
		Gender:         r.PostFormValue("gender"),
	}
	p := h.page(r, "Edit profile")
	p.Form = formValues(r, profileFields...)
	p.Data = api.Genders
	if err := form.Check("UpdateUserProfile", f); err != nil {
		h.fail(w, r, "user_edit", p, err)
		return
	}

	_, err := manager(r).API().UpdateProfile(r.Context(), api.ProfileUpdate{
		FirstName:      form.Optional(f.FirstName),
		LastName:       form.Optional(f.LastName),
		Email:          form.Optional(f.Email),
		ProfilePicture: form.Optional(f.ProfilePicture),
		Gender:         form.Optional(f.Gender),
	})
	if err != nil {
		h.fail(w, r, "user_edit", p, err)
		return
	}
	redirect(w, r, gate.UserDetails.Pattern)
}

//
// Delete account
//

func (h *Handler) deleteUserForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "user_delete", h.page(r, "Delete account"))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	out, err := manager(r).DeleteAccount(r.Context())
	if err != nil {
		h.fail(w, r, "user_delete", h.page(r, "Delete account"), err)
		return
	}
	redirect(w, r, out.Navigate)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
