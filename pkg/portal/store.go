package portal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = fmt.Errorf("record not found")

// Store provides PostgreSQL-backed persistence for portal resources.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an existing database handle. The caller owns
// the handle's lifecycle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Clusters

func (s *Store) ListClusters(ctx context.Context) ([]*Cluster, error) {
	query := `
		SELECT id, name, endpoint, description, created_at, updated_at
		FROM clusters
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*Cluster
	for rows.Next() {
		var c Cluster
		if err := rows.Scan(&c.ID, &c.Name, &c.Endpoint, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, &c)
	}
	return clusters, rows.Err()
}

func (s *Store) GetCluster(ctx context.Context, id int64) (*Cluster, error) {
	query := `
		SELECT id, name, endpoint, description, created_at, updated_at
		FROM clusters
		WHERE id = $1
	`
	var c Cluster
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Endpoint, &c.Description, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get cluster: %w", err)
	}
	return &c, nil
}

func (s *Store) CreateCluster(ctx context.Context, c *Cluster) error {
	query := `
		INSERT INTO clusters (name, endpoint, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, c.Name, c.Endpoint, c.Description).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cluster: %w", err)
	}
	return nil
}

func (s *Store) UpdateCluster(ctx context.Context, c *Cluster) error {
	query := `
		UPDATE clusters
		SET name = $2, endpoint = $3, description = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, c.ID, c.Name, c.Endpoint, c.Description).
		Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to update cluster: %w", err)
	}
	return nil
}

func (s *Store) DeleteCluster(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "clusters", id)
}

// Catalogs

func (s *Store) ListCatalogs(ctx context.Context) ([]*Catalog, error) {
	query := `
		SELECT id, name, source_url, description, created_at, updated_at
		FROM catalogs
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}
	defer rows.Close()

	var catalogs []*Catalog
	for rows.Next() {
		var c Catalog
		if err := rows.Scan(&c.ID, &c.Name, &c.SourceURL, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog: %w", err)
		}
		catalogs = append(catalogs, &c)
	}
	return catalogs, rows.Err()
}

func (s *Store) CreateCatalog(ctx context.Context, c *Catalog) error {
	query := `
		INSERT INTO catalogs (name, source_url, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, c.Name, c.SourceURL, c.Description).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	return nil
}

func (s *Store) DeleteCatalog(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "catalogs", id)
}

// Projects

func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	query := `
		SELECT id, name, cluster_name, owner, description, created_at, updated_at
		FROM projects
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ClusterName, &p.Owner, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	query := `
		INSERT INTO projects (name, cluster_name, owner, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, p.Name, p.ClusterName, p.Owner, p.Description).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	query := `
		UPDATE projects
		SET name = $2, cluster_name = $3, owner = $4, description = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, p.ID, p.Name, p.ClusterName, p.Owner, p.Description).
		Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "projects", id)
}

// Users

func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, username, nickname, email, roles, created_at, updated_at
		FROM users
		ORDER BY username
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Nickname, &u.Email, pq.Array(&u.Roles), &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, username, nickname, email, roles, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Nickname, &u.Email, pq.Array(&u.Roles), &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, nickname, email, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, u.Username, u.Nickname, u.Email, pq.Array(u.Roles)).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	query := `
		UPDATE users
		SET nickname = $2, email = $3, roles = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query, u.ID, u.Nickname, u.Email, pq.Array(u.Roles)).
		Scan(&u.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "users", id)
}

func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
