package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskflow/internal/domain"
	"taskflow/internal/repository"
	"taskflow/internal/storage"
)

const exportBatchSize = 200

// ExportConfig locates export snapshots in object storage.
type ExportConfig struct {
	Bucket    string
	KeyPrefix string
	URLExpiry time.Duration
}

// Export describes one uploaded snapshot.
type Export struct {
	Key         string
	Location    string
	Count       int
	DownloadURL string
	CreatedAt   time.Time
}

// ExportService writes JSON snapshots of an actor's tasks to object storage.
type ExportService interface {
	Export(ctx context.Context, actor domain.Actor) (*Export, error)
	ListExports(ctx context.Context, actor domain.Actor) ([]storage.ObjectInfo, error)
}

type exportService struct {
	tasks   repository.TaskRepository
	storage storage.Service
	cfg     ExportConfig
	logger  *logrus.Logger
	now     func() time.Time
}

func NewExportService(tasks repository.TaskRepository, store storage.Service, cfg ExportConfig, logger *logrus.Logger) ExportService {
	if logger == nil {
		logger = logrus.New()
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 15 * time.Minute
	}
	return &exportService{
		tasks:   tasks,
		storage: store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

type exportSnapshot struct {
	UserID     int64          `json:"user_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Tasks      []exportedTask `json:"tasks"`
}

type exportedTask struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Export snapshots the same task set List would return for the actor.
func (s *exportService) Export(ctx context.Context, actor domain.Actor) (*Export, error) {
	snapshot := exportSnapshot{
		UserID:     actor.ID,
		ExportedAt: s.now().UTC(),
		Tasks:      []exportedTask{},
	}

	for offset := 0; ; offset += exportBatchSize {
		batch, total, err := s.tasks.List(ctx, domain.TaskFilter{
			OwnerID: actor.ID,
			Offset:  offset,
			Limit:   exportBatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list tasks for export: %w", err)
		}
		for _, task := range batch {
			snapshot.Tasks = append(snapshot.Tasks, exportedTask{
				ID:          task.ID,
				Title:       task.Title,
				Description: task.Description,
				Priority:    string(task.Priority),
				Status:      string(task.Status),
				IsCompleted: task.IsCompleted,
				CompletedAt: task.CompletedAt,
				DueDate:     task.DueDate,
				CreatedAt:   task.CreatedAt,
				UpdatedAt:   task.UpdatedAt,
			})
		}
		if len(batch) < exportBatchSize || offset+len(batch) >= total {
			break
		}
	}
	snapshot.Count = len(snapshot.Tasks)

	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := s.userPrefix(actor.ID) + uuid.NewString() + ".json"
	location, err := s.storage.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	url, err := s.storage.GetObjectURL(ctx, s.cfg.Bucket, key, s.cfg.URLExpiry)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": actor.ID,
		"key":     key,
		"count":   snapshot.Count,
	}).Info("tasks exported")

	return &Export{
		Key:         key,
		Location:    location,
		Count:       snapshot.Count,
		DownloadURL: url,
		CreatedAt:   snapshot.ExportedAt,
	}, nil
}

func (s *exportService) ListExports(ctx context.Context, actor domain.Actor) ([]storage.ObjectInfo, error) {
	return s.storage.ListObjects(ctx, s.cfg.Bucket, s.userPrefix(actor.ID))
}

func (s *exportService) userPrefix(userID int64) string {
	prefix := fmt.Sprintf("user-%d/", userID)
	if s.cfg.KeyPrefix != "" {
		prefix = s.cfg.KeyPrefix + "/" + prefix
	}
	return prefix
}
