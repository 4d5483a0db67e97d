// Package mocks provides gomock doubles for the ports used by services and handlers.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockSessionStore(ctrl)
//	store.EXPECT().Clear(gomock.Any()).Return(nil).Times(1)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/lanoire/lanoire-web/internal/ports SessionStore

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=api_mock.go github.com/lanoire/lanoire-web/internal/ports API,Transport
