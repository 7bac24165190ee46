package service

import (
	"context"
	"log/slog"

	"github.com/org-hierarchy-api/internal/domain"
	"github.com/org-hierarchy-api/internal/hierarchy"
	"github.com/org-hierarchy-api/internal/repository"
)

// RootResolution - результат поиска корневого контейнера
type RootResolution struct {
	ID int64
	// Transient означает, что контейнер не найден и ID не сохранён в хранилище
	Transient bool
}

// RootBootstrapper гарантирует наличие корневого контейнера в области
type RootBootstrapper struct {
	store  repository.Store
	logger *slog.Logger
}

// NewRootBootstrapper создаёт новый экземпляр
func NewRootBootstrapper(store repository.Store, logger *slog.Logger) *RootBootstrapper {
	return &RootBootstrapper{store: store, logger: logger}
}

// ResolveRoot находит контейнер области или создаёт его в пустой области
func (b *RootBootstrapper) ResolveRoot(ctx context.Context, scope string) (RootResolution, error) {
	employees, err := b.store.Employees().ListByScope(ctx, scope)
	if err != nil {
		return RootResolution{}, domain.NewStoreError("list employees", err)
	}

	var containers []int64
	for i := range employees {
		if employees[i].IsContainer() {
			containers = append(containers, employees[i].ID)
		}
	}

	switch {
	case len(containers) > 0:
		// ListByScope упорядочен по id, побеждает самый старый контейнер
		if len(containers) > 1 {
			b.logger.Warn("multiple root containers in scope",
				slog.String("scope", scope),
				slog.Any("container_ids", containers),
			)
		}
		return RootResolution{ID: containers[0]}, nil

	case len(employees) > 0:
		// Директора без контейнера: поверх существующих данных ничего не пишем
		b.logger.Warn("root container missing, using transient root",
			slog.String("scope", scope),
			slog.Int("employees", len(employees)),
		)
		return RootResolution{ID: hierarchy.TransientRootID, Transient: true}, nil

	default:
		root := &domain.Employee{OwnerScope: scope}
		if err := b.store.Employees().Create(ctx, root); err != nil {
			return RootResolution{}, domain.NewStoreError("create root", err)
		}
		b.logger.Info("root container created", slog.String("scope", scope), slog.Int64("root_id", root.ID))
		return RootResolution{ID: root.ID}, nil
	}
}

// Reinitialize удаляет все записи области и создаёт новый контейнер. Необратимо.
func (b *RootBootstrapper) Reinitialize(ctx context.Context, scope string) (int64, error) {
	var rootID int64
	err := b.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.ReportingLines().DeleteByScope(ctx, scope); err != nil {
			return domain.NewStoreError("delete reporting lines", err)
		}
		if err := tx.Employees().DeleteByScope(ctx, scope); err != nil {
			return domain.NewStoreError("delete employees", err)
		}
		root := &domain.Employee{OwnerScope: scope}
		if err := tx.Employees().Create(ctx, root); err != nil {
			return domain.NewStoreError("create root", err)
		}
		rootID = root.ID
		return nil
	})
	if err != nil {
		return 0, domain.NewStoreError("reinitialize", err)
	}

	b.logger.Info("scope reinitialized", slog.String("scope", scope), slog.Int64("root_id", rootID))
	return rootID, nil
}
