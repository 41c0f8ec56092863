package board

import (
	"fmt"
	"strings"

	"taskbridge/internal/model"
)

func (b *Board) CreateClient(name string) (model.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Client{}, fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}
	c := model.Client{ID: b.newID(), Name: name}
	b.Clients.Create(c)
	return c, nil
}

func (b *Board) UpdateClient(c model.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: client name is required", ErrInvalidInput)
	}
	if !b.Clients.Update(c) {
		return fmt.Errorf("client %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// DeleteClient removes a client. Tasks keep their clientId; readers treat
// an unknown client as none.
func (b *Board) DeleteClient(id string) error {
	if _, ok := b.Clients.Remove(id); !ok {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return nil
}

func (b *Board) CreateUser(u model.User) (model.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return model.User{}, fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	if u.ID == "" {
		u.ID = b.newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	b.Users.Create(u)
	return u, nil
}

func (b *Board) UpdateUser(u model.User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if !b.Users.Update(u) {
		return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (b *Board) DeleteUser(id string) error {
	if _, ok := b.Users.Remove(id); !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}
