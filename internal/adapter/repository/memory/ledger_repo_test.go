package memory

import (
	"testing"

	"github.com/iho/cashflow/internal/adapter/repository/repositorytest"
	"github.com/iho/cashflow/internal/usecase"
)

func TestLedgerRepositoryContract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T) usecase.LedgerRepository {
		return NewLedgerRepository()
	})
}
