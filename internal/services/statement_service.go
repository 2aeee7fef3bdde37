package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/clock"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/storage"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// StatementService архивирует выписки по хранилищу в объектное хранилище.
type StatementService interface {
	// Create сохраняет выписку по хранилищу вызывающего: состояние и последние движения.
	Create(ctx context.Context, caller address.Address) (*models.StatementResponse, error)
	// Get открывает ранее сохраненную выписку. Закрыть reader должен вызывающий.
	Get(ctx context.Context, caller address.Address, id uuid.UUID) (io.ReadCloser, error)
}

// ErrStatementNotFound - выписка не найдена или принадлежит другому хранилищу.
var ErrStatementNotFound = errors.New("выписка не найдена")

const statementContentType = "application/json"

var _ StatementService = (*statementService)(nil) // Проверка соответствия интерфейсу

type statementService struct {
	vaults  VaultService
	machine *vault.Machine
	files   storage.FileStorage
	clock   clock.Clock
	log     *logger.Logger
}

// NewStatementService создает сервис выписок.
func NewStatementService(
	machine *vault.Machine,
	files storage.FileStorage,
	clk clock.Clock,
	log *logger.Logger,
) StatementService {
	return &statementService{
		vaults:  NewVaultService(machine, log),
		machine: machine,
		files:   files,
		clock:   clk,
		log:     log.Module("services.statements"),
	}
}

// StatementKey возвращает ключ объекта выписки id хранилища vaultAddr.
func StatementKey(vaultAddr address.Address, id uuid.UUID) string {
	return fmt.Sprintf("statements/%s/%s.json", vaultAddr, id)
}

// Create реализует StatementService.
func (s *statementService) Create(ctx context.Context, caller address.Address) (*models.StatementResponse, error) {
	status, err := s.vaults.Status(ctx, caller)
	if err != nil {
		return nil, err
	}
	history, err := s.vaults.History(ctx, caller, vault.MaxHistoryLimit, 0)
	if err != nil {
		return nil, err
	}

	statement := models.Statement{
		Status:      *status,
		Transfers:   history.Transfers,
		GeneratedAt: s.clock.Now(),
	}
	data, err := json.Marshal(statement)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации выписки: %w", err)
	}

	id := uuid.New()
	key := StatementKey(status.Vault.Address, id)
	if err = s.files.UploadFile(ctx, key, bytes.NewReader(data), int64(len(data)), statementContentType); err != nil {
		s.log.Error("ошибка загрузки выписки", "key", key, "err", err)
		return nil, fmt.Errorf("ошибка сохранения выписки: %w", err)
	}

	s.log.Info("выписка сохранена", "vault", status.Vault.Address, "key", key, "size", len(data))
	return &models.StatementResponse{ID: id, Key: key}, nil
}

// Get реализует StatementService.
func (s *statementService) Get(ctx context.Context, caller address.Address, id uuid.UUID) (io.ReadCloser, error) {
	if caller.IsZero() {
		return nil, vault.ErrUnauthorized
	}
	vaultAddr, err := s.machine.VaultAddress(caller)
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления адреса хранилища: %w", err)
	}

	// Ключ строится из адреса хранилища вызывающего, чужие выписки недоступны.
	key := StatementKey(vaultAddr, id)
	reader, err := s.files.DownloadFile(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrStatementNotFound
		}
		return nil, fmt.Errorf("ошибка чтения выписки: %w", err)
	}
	return reader, nil
}
