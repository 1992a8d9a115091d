package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/argo-dataprep/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_repository.go -package=mocks github.com/rxtech-lab/argo-dataprep/internal/metadata Repository
