// Package mocks provides test doubles for the account package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a mock implementation of the account.Client interface
type MockClient struct {
	mock.Mock
}

// Login implements account.Client.Login
func (m *MockClient) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

// ExpectLoginReturnsToken sets up expectation for Login to succeed for the given credentials
func (m *MockClient) ExpectLoginReturnsToken(email, password, token string) *MockClient {
	m.On("Login", mock.Anything, email, password).Return(token, nil)
	return m
}

// ExpectLoginReturnsError sets up expectation for any Login call to fail with err
func (m *MockClient) ExpectLoginReturnsError(err error) *MockClient {
	m.On("Login", mock.Anything, mock.Anything, mock.Anything).Return("", err)
	return m
}
