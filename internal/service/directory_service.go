package service

import (
	"context"

	"taskbridge/internal/model"
	"taskbridge/internal/repository"
)

// DirectoryService provides helpers around users and clients.
type DirectoryService struct {
	users   *repository.UserRepository
	clients *repository.ClientRepository
}

func NewDirectoryService(users *repository.UserRepository, clients *repository.ClientRepository) *DirectoryService {
	return &DirectoryService{users: users, clients: clients}
}

func (s *DirectoryService) Users(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *DirectoryService) Clients(ctx context.Context) ([]model.Client, error) {
	return s.clients.List(ctx)
}

// UserNames maps user ids to display names.
func (s *DirectoryService) UserNames(ctx context.Context) (map[string]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// ClientNames maps client ids to names.
func (s *DirectoryService) ClientNames(ctx context.Context) (map[string]string, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}
	return names, nil
}
