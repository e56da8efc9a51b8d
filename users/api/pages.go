package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/andrebq/rampup/internal/logutil"
	"github.com/andrebq/rampup/users"
)

const (
	FlashCookie = "_rampup_flash"
)

type (
	pages struct {
		tmpl *template.Template
	}

	pageData struct {
		Title       string
		Flash       string
		Error       string
		CurrentUser *users.User
		Name        string
		Email       string
	}
)

//go:embed templates/*.html
var templates embed.FS

func newPages() (*pages, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &pages{tmpl: tmpl}, nil
}

func (p *pages) home(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := p.data(w, r, realm, "Home")
		p.render(w, r, http.StatusOK, "home.html", data)
	}
}

func (p *pages) signupForm(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.render(w, r, http.StatusOK, "signup.html", p.data(w, r, realm, "Sign up"))
	}
}

func (p *pages) signup(store *users.Store, realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "unable to parse form", http.StatusBadRequest)
			return
		}
		u, err := store.Create(r.Context(), users.SignUp{
			Name:                 r.PostFormValue("name"),
			Email:                r.PostFormValue("email"),
			Password:             r.PostFormValue("password"),
			PasswordConfirmation: r.PostFormValue("password_confirmation"),
		})
		if msg, invalid := validationMessage(err); invalid {
			data := p.data(w, r, realm, "Sign up")
			data.Error = msg
			data.Name = r.PostFormValue("name")
			data.Email = r.PostFormValue("email")
			p.render(w, r, http.StatusUnprocessableEntity, "signup.html", data)
			return
		} else if err != nil {
			p.internalError(w, r, err, "Unable to create user")
			return
		}
		p.startSession(w, r, realm, u, "Signed up!")
	}
}

func (p *pages) loginForm(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.render(w, r, http.StatusOK, "login.html", p.data(w, r, realm, "Log in"))
	}
}

func (p *pages) login(store *users.Store, realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "unable to parse form", http.StatusBadRequest)
			return
		}
		u, ok, err := store.Authenticate(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
		if err != nil {
			p.internalError(w, r, err, "Unable to authenticate user")
			return
		} else if !ok {
			data := p.data(w, r, realm, "Log in")
			data.Error = "Invalid email or password"
			data.Email = r.PostFormValue("email")
			p.render(w, r, http.StatusUnauthorized, "login.html", data)
			return
		}
		p.startSession(w, r, realm, u, "Logged in!")
	}
}

func (p *pages) logout(realm *Realm) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := realm.Logout(r); err != nil {
			p.internalError(w, r, err, "Unable to end session")
			return
		}
		realm.clearCookie(w)
		setFlash(w, "Logged out!")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (p *pages) startSession(w http.ResponseWriter, r *http.Request, realm *Realm, u users.User, flash string) {
	token, err := realm.Login(r.Context(), u)
	if err != nil {
		p.internalError(w, r, err, "Unable to start session")
		return
	}
	realm.setCookie(w, token)
	setFlash(w, flash)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *pages) data(w http.ResponseWriter, r *http.Request, realm *Realm, title string) pageData {
	data := pageData{Title: title, Flash: takeFlash(w, r)}
	if u, ok := realm.CurrentUser(r); ok {
		data.CurrentUser = &u
	}
	return data
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		p.internalError(w, r, err, "Unable to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (p *pages) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Msg(msg)
	http.Error(w, "server is mis-behaving, check logs for more information", http.StatusInternalServerError)
}

func setFlash(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns the pending flash message and clears it.
func takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(FlashCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: FlashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}
