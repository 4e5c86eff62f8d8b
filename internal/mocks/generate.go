// Package mocks provides gomock implementations of the core ports for service tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core ReaperRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=locality_repository_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core LocalityRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=published_page_repository_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core PublishedPageRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core CacheRepository

// LLM and CMS ports.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=text_completer_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core TextCompleter
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=page_publisher_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core PagePublisher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_notifier_mock.go github.com/UltimateServices/Dumpsters-CRM/internal/core JobNotifier
