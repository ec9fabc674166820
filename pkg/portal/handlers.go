package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lucirr/dip-console/pkg/audit"
	"github.com/lucirr/dip-console/pkg/authz"
	"github.com/lucirr/dip-console/pkg/contextkeys"
	"github.com/lucirr/dip-console/pkg/observability"
)

// Per-action role requirements. These mirror the route-protection table but
// are enforced independently of it.
var (
	clusterRoles      = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin}
	catalogReadRoles  = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin, authz.RoleManager}
	catalogWriteRoles = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin}
	projectReadRoles  = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin, authz.RoleManager, authz.RoleMember}
	projectWriteRoles = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin, authz.RoleManager}
	userRoles         = authz.RoleSet{authz.RoleRoot, authz.RoleAdmin}
)

// Handlers exposes the portal resources over REST.
type Handlers struct {
	store    *Store
	logger   *observability.Logger
	metrics  *observability.Metrics
	recorder *audit.Recorder
}

// NewHandlers creates the portal handlers. The metrics argument may be nil.
func NewHandlers(store *Store, logger *observability.Logger, metrics *observability.Metrics, recorder *audit.Recorder) *Handlers {
	return &Handlers{store: store, logger: logger, metrics: metrics, recorder: recorder}
}

// RegisterRoutes registers the portal API routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/clusters", h.listClusters).Methods("GET")
	router.HandleFunc("/api/clusters", h.createCluster).Methods("POST")
	router.HandleFunc("/api/clusters/{id:[0-9]+}", h.getCluster).Methods("GET")
	router.HandleFunc("/api/clusters/{id:[0-9]+}", h.updateCluster).Methods("PUT")
	router.HandleFunc("/api/clusters/{id:[0-9]+}", h.deleteCluster).Methods("DELETE")

	router.HandleFunc("/api/catalogs", h.listCatalogs).Methods("GET")
	router.HandleFunc("/api/catalogs", h.createCatalog).Methods("POST")
	router.HandleFunc("/api/catalogs/{id:[0-9]+}", h.deleteCatalog).Methods("DELETE")

	router.HandleFunc("/api/projects", h.listProjects).Methods("GET")
	router.HandleFunc("/api/projects", h.createProject).Methods("POST")
	router.HandleFunc("/api/projects/{id:[0-9]+}", h.updateProject).Methods("PUT")
	router.HandleFunc("/api/projects/{id:[0-9]+}", h.deleteProject).Methods("DELETE")

	router.HandleFunc("/api/users", h.listUsers).Methods("GET")
	router.HandleFunc("/api/users", h.createUser).Methods("POST")
	router.HandleFunc("/api/users/{id:[0-9]+}", h.getUser).Methods("GET")
	router.HandleFunc("/api/users/{id:[0-9]+}", h.updateUser).Methods("PUT")
	router.HandleFunc("/api/users/{id:[0-9]+}", h.deleteUser).Methods("DELETE")
}

// Clusters

func (h *Handlers) listClusters(w http.ResponseWriter, r *http.Request) {
	var clusters []*Cluster
	h.guarded(w, r, "clusters.list", clusterRoles, func() error {
		var err error
		clusters, err = h.store.ListClusters(r.Context())
		return wrapStoreError("clusters.list", err)
	}, func() { h.writeJSON(w, http.StatusOK, clusters) })
}

func (h *Handlers) getCluster(w http.ResponseWriter, r *http.Request) {
	var cluster *Cluster
	h.guarded(w, r, "clusters.get", clusterRoles, func() error {
		var err error
		cluster, err = h.store.GetCluster(r.Context(), pathID(r))
		return wrapStoreError("clusters.get", err)
	}, func() { h.writeJSON(w, http.StatusOK, cluster) })
}

func (h *Handlers) createCluster(w http.ResponseWriter, r *http.Request) {
	var cluster Cluster
	if !h.decode(w, r, &cluster) {
		return
	}
	h.guarded(w, r, "clusters.create", clusterRoles, func() error {
		return wrapStoreError("clusters.create", h.store.CreateCluster(r.Context(), &cluster))
	}, func() { h.writeJSON(w, http.StatusCreated, &cluster) })
}

func (h *Handlers) updateCluster(w http.ResponseWriter, r *http.Request) {
	var cluster Cluster
	if !h.decode(w, r, &cluster) {
		return
	}
	cluster.ID = pathID(r)
	h.guarded(w, r, "clusters.update", clusterRoles, func() error {
		return wrapStoreError("clusters.update", h.store.UpdateCluster(r.Context(), &cluster))
	}, func() { h.writeJSON(w, http.StatusOK, &cluster) })
}

func (h *Handlers) deleteCluster(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, "clusters.delete", clusterRoles, func() error {
		return wrapStoreError("clusters.delete", h.store.DeleteCluster(r.Context(), pathID(r)))
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

// Catalogs

func (h *Handlers) listCatalogs(w http.ResponseWriter, r *http.Request) {
	var catalogs []*Catalog
	h.guarded(w, r, "catalogs.list", catalogReadRoles, func() error {
		var err error
		catalogs, err = h.store.ListCatalogs(r.Context())
		return wrapStoreError("catalogs.list", err)
	}, func() { h.writeJSON(w, http.StatusOK, catalogs) })
}

func (h *Handlers) createCatalog(w http.ResponseWriter, r *http.Request) {
	var catalog Catalog
	if !h.decode(w, r, &catalog) {
		return
	}
	h.guarded(w, r, "catalogs.create", catalogWriteRoles, func() error {
		return wrapStoreError("catalogs.create", h.store.CreateCatalog(r.Context(), &catalog))
	}, func() { h.writeJSON(w, http.StatusCreated, &catalog) })
}

func (h *Handlers) deleteCatalog(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, "catalogs.delete", catalogWriteRoles, func() error {
		return wrapStoreError("catalogs.delete", h.store.DeleteCatalog(r.Context(), pathID(r)))
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

// Projects

func (h *Handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	var projects []*Project
	h.guarded(w, r, "projects.list", projectReadRoles, func() error {
		var err error
		projects, err = h.store.ListProjects(r.Context())
		return wrapStoreError("projects.list", err)
	}, func() { h.writeJSON(w, http.StatusOK, projects) })
}

func (h *Handlers) createProject(w http.ResponseWriter, r *http.Request) {
	var project Project
	if !h.decode(w, r, &project) {
		return
	}
	h.guarded(w, r, "projects.create", projectWriteRoles, func() error {
		return wrapStoreError("projects.create", h.store.CreateProject(r.Context(), &project))
	}, func() { h.writeJSON(w, http.StatusCreated, &project) })
}

func (h *Handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	var project Project
	if !h.decode(w, r, &project) {
		return
	}
	project.ID = pathID(r)
	h.guarded(w, r, "projects.update", projectWriteRoles, func() error {
		return wrapStoreError("projects.update", h.store.UpdateProject(r.Context(), &project))
	}, func() { h.writeJSON(w, http.StatusOK, &project) })
}

func (h *Handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, "projects.delete", projectWriteRoles, func() error {
		return wrapStoreError("projects.delete", h.store.DeleteProject(r.Context(), pathID(r)))
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

// Users

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	var users []*User
	h.guarded(w, r, "users.list", userRoles, func() error {
		var err error
		users, err = h.store.ListUsers(r.Context())
		return wrapStoreError("users.list", err)
	}, func() { h.writeJSON(w, http.StatusOK, users) })
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	var user *User
	h.guarded(w, r, "users.get", userRoles, func() error {
		var err error
		user, err = h.store.GetUser(r.Context(), pathID(r))
		return wrapStoreError("users.get", err)
	}, func() { h.writeJSON(w, http.StatusOK, user) })
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var user User
	if !h.decode(w, r, &user) {
		return
	}
	h.guarded(w, r, "users.create", userRoles, func() error {
		return wrapStoreError("users.create", h.store.CreateUser(r.Context(), &user))
	}, func() { h.writeJSON(w, http.StatusCreated, &user) })
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var user User
	if !h.decode(w, r, &user) {
		return
	}
	user.ID = pathID(r)
	h.guarded(w, r, "users.update", userRoles, func() error {
		return wrapStoreError("users.update", h.store.UpdateUser(r.Context(), &user))
	}, func() { h.writeJSON(w, http.StatusOK, &user) })
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.guarded(w, r, "users.delete", userRoles, func() error {
		return wrapStoreError("users.delete", h.store.DeleteUser(r.Context(), pathID(r)))
	}, func() { w.WriteHeader(http.StatusNoContent) })
}

// guarded runs the action under the permission wrapper and writes the
// success response only when the whole chain passed.
func (h *Handlers) guarded(w http.ResponseWriter, r *http.Request, operation string, required authz.RoleSet, action authz.Action, respond func()) {
	sess := contextkeys.SessionFrom(r.Context())
	if err := authz.WithPermission(sess, required, action); err != nil {
		h.writeError(w, r, operation, err)
		return
	}
	respond()
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var upstream *authz.UpstreamAPIError
	switch {
	case errors.Is(err, authz.ErrAuthenticationRequired):
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, authz.ErrPermissionDenied):
		if h.metrics != nil {
			h.metrics.PermissionDenialsTotal.WithLabelValues(operation).Inc()
		}
		if h.recorder != nil {
			sess := contextkeys.SessionFrom(r.Context())
			h.recorder.Record(r.Context(), &audit.Event{
				EventType: audit.EventTypeActionDenied,
				Status:    audit.EventStatusDenied,
				Username:  sess.Username,
				Path:      r.URL.Path,
				Operation: operation,
			})
		}
		h.logger.WithContext(r.Context()).WithField("operation", operation).Warn("Permission denied")
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &upstream):
		h.logger.WithContext(r.Context()).WithError(err).Error("Backend operation failed")
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": upstream.Message})
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("Unexpected error")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// wrapStoreError converts backend failures to the upstream error type while
// letting not-found and nil pass through untouched.
func wrapStoreError(operation string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &authz.UpstreamAPIError{Operation: operation, Message: err.Error(), Err: err}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}
