package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Passes       *PassHandler
	Board        *BoardHandler
	Users        *UserHandler
	Destinations *DestinationHandler
	Periods      *PeriodHandler
	Kiosks       *KioskHandler
	Settings     *SettingsHandler
	Audit        *AuditHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
	}

	if cfg.Board != nil {
		mux.HandleFunc("/board", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Board.List(w, r)
		})
	}

	if cfg.Passes != nil {
		mux.HandleFunc("/passes", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Passes.List(w, r)
			case http.MethodPost:
				cfg.Passes.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/passes/", func(w http.ResponseWriter, r *http.Request) {
			routePass(cfg.Passes, w, r)
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Users.Update(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		})
	}

	if cfg.Destinations != nil {
		mux.HandleFunc("/destinations", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Destinations.List(w, r)
			case http.MethodPost:
				cfg.Destinations.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/destinations/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/destinations/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Destinations.Update(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		})
	}

	if cfg.Periods != nil {
		mux.HandleFunc("/periods", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Periods.List(w, r)
			case http.MethodPost:
				cfg.Periods.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/periods/", func(w http.ResponseWriter, r *http.Request) {
			routePeriod(cfg.Periods, w, r)
		})
		mux.HandleFunc("/enrollments/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/enrollments/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Periods.Unenroll(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		})
	}

	if cfg.Kiosks != nil {
		mux.HandleFunc("/kiosks", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Kiosks.List(w, r)
			case http.MethodPost:
				cfg.Kiosks.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/kiosks/", func(w http.ResponseWriter, r *http.Request) {
			routeKiosk(cfg.Kiosks, w, r)
		})
	}

	if cfg.Settings != nil {
		mux.HandleFunc("/settings", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Settings.List(w, r)
		})
		mux.HandleFunc("/settings/", func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimPrefix(r.URL.Path, "/settings/")
			if key == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPut {
				methodNotAllowed(w, http.MethodPut)
				return
			}
			cfg.Settings.Update(w, r.WithContext(ContextWithResourceID(r.Context(), key)))
		})
	}

	if cfg.Audit != nil {
		mux.HandleFunc("/audit", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Audit.List(w, r)
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func routePass(handler *PassHandler, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/passes/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if rest == "queue" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		handler.Queue(w, r)
		return
	}

	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	r = r.WithContext(ContextWithPassID(r.Context(), id))

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		handler.Get(w, r)
	case "approve", "deny", "cancel", "extend", "archive":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		switch action {
		case "approve":
			handler.Approve(w, r)
		case "deny":
			handler.Deny(w, r)
		case "cancel":
			handler.Cancel(w, r)
		case "extend":
			handler.Extend(w, r)
		case "archive":
			handler.Archive(w, r)
		}
	case "overrides":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		handler.Overrides(w, r)
	default:
		http.NotFound(w, r)
	}
}

func routePeriod(handler *PeriodHandler, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/periods/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	r = r.WithContext(ContextWithResourceID(r.Context(), id))

	switch sub {
	case "":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		handler.Update(w, r)
	case "enrollments":
		switch r.Method {
		case http.MethodGet:
			handler.ListEnrollments(w, r)
		case http.MethodPost:
			handler.Enroll(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		http.NotFound(w, r)
	}
}

func routeKiosk(handler *KioskHandler, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/kiosks/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	r = r.WithContext(ContextWithResourceID(r.Context(), id))

	switch sub {
	case "":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		handler.Update(w, r)
	case "rotate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		handler.RotateToken(w, r)
	default:
		http.NotFound(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
