package sqlrepo

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
)

const userColumns = `id, email, first_name, last_name, full_name, username, role, status,
	password_hash, crm_contact_id, profile_image_key, created_at, updated_at`

type usersRepo struct {
	q *queries
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	ts := now()
	if !u.CreatedAt.IsZero() {
		ts = u.CreatedAt.UTC()
	}

	_, err := r.q.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.FullName,
		mapOptionalString(u.Username),
		string(u.Role),
		string(u.Status),
		mapOptionalString(u.PasswordHash),
		mapOptionalString(u.CRMContactID),
		mapOptionalString(u.ProfileImageKey),
		ts,
		ts,
	)
	return err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *usersRepo) GetUserByCRMContactID(ctx context.Context, contactID string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE crm_contact_id = ?`, contactID)
}

func (r *usersRepo) ActivateUser(ctx context.Context, id string, a store.Activation) error {
	return r.q.execConditional(ctx, "users", id, `
		UPDATE users
		SET status = ?, username = ?, full_name = ?, password_hash = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.UserActive),
		a.Username,
		a.FullName,
		a.PasswordHash,
		now(),
		id,
		string(domain.UserInvited),
	)
}

func (r *usersRepo) UpdateUserStatus(
	ctx context.Context,
	id string,
	from []domain.UserStatus,
	to domain.UserStatus,
) error {
	args := []any{string(to), now(), id}
	args = append(args, statusArgs(from)...)

	return r.q.execConditional(ctx, "users", id, `
		UPDATE users SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	)
}

func (r *usersRepo) LinkCRMContact(ctx context.Context, id, contactID string) error {
	_, err := r.q.exec(ctx, `
		UPDATE users SET crm_contact_id = ?, updated_at = ?
		WHERE id = ? AND crm_contact_id IS NULL`,
		contactID, now(), id,
	)
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.q.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) getOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	u, err := scanUser(r.q.queryRow(ctx, query, args...))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var role, status string
	var username, passwordHash, contactID, imageKey sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.FullName,
		&username,
		&role,
		&status,
		&passwordHash,
		&contactID,
		&imageKey,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	u.Username = mapNullStringPtr(username)
	u.PasswordHash = mapNullStringPtr(passwordHash)
	u.CRMContactID = mapNullStringPtr(contactID)
	u.ProfileImageKey = mapNullStringPtr(imageKey)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
