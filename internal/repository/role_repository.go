package repository

import (
	"context"
	"database/sql"

	"github.com/foxshrine/shrine-api/internal/model"
)

type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// GetByName fetches a role and its permission set by role name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, name, description FROM roles WHERE name=? LIMIT 1",
		name).Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return model.Role{}, err
	}
	perms, err := r.permissions(ctx, role.ID)
	if err != nil {
		return model.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// List returns all roles with their permission sets.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id, name, description FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []model.Role{}
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := r.permissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (r *RoleRepo) permissions(ctx context.Context, roleID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT permission FROM role_permissions WHERE role_id=? ORDER BY permission", roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
