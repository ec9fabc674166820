package portal

import "time"

// Cluster is a managed Kubernetes cluster registered with the console.
type Cluster struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Endpoint    string    `json:"endpoint"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Catalog is an application catalog entry deployable to a cluster.
type Catalog struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SourceURL   string    `json:"source_url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Project is a tenant workspace scoped to a cluster.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ClusterName string    `json:"cluster_name"`
	Owner       string    `json:"owner"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is a portal user record. Roles here mirror what the upstream role
// service reports; the console manages membership, not authentication.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
