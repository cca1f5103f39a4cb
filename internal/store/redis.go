package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

const (
	keyIssuePrefix    = "triage:issue:"
	keyRunPrefix      = "triage:run:"
	keyDecisionPrefix = "triage:decision:"
	keyDocPrefix      = "triage:doc:"
	keyIssueList      = "triage:issues"
	keyRunList        = "triage:runs"
	keyDecisionList   = "triage:decisions"
	keyDocList        = "triage:docs"
	keyAuditList      = "triage:audit"
)

// RedisStore persists the ledger in Redis. Multi-record writes go through
// TxPipeline so they commit atomically. Check-then-write races are prevented
// by the per-issue serialization in the service layer, not here.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, username, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) CreateIssue(ctx context.Context, issue models.Issue, event models.AuditEvent) error {
	exists, err := s.client.Exists(ctx, keyIssuePrefix+issue.IssueID.String()).Result()
	if err != nil {
		return fmt.Errorf("check issue: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("issue %s already exists", issue.IssueID)
	}

	issueData, eventData, err := marshalPair(issue, event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyIssuePrefix+issue.IssueID.String(), issueData, 0)
	pipe.RPush(ctx, keyIssueList, issue.IssueID.String())
	pipe.RPush(ctx, keyAuditList, eventData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (s *RedisStore) GetIssue(ctx context.Context, id uuid.UUID) (models.Issue, error) {
	var issue models.Issue
	if err := s.getJSON(ctx, keyIssuePrefix+id.String(), &issue); err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

func (s *RedisStore) ListIssues(ctx context.Context, filter IssueFilter) ([]models.Issue, error) {
	ids, err := s.client.LRange(ctx, keyIssueList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	issues := make([]models.Issue, 0, len(ids))
	for _, id := range ids {
		var issue models.Issue
		if err := s.getJSON(ctx, keyIssuePrefix+id, &issue); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if matchesIssue(issue, filter) {
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func (s *RedisStore) AppendRun(ctx context.Context, run models.Run, event models.AuditEvent) error {
	if _, err := s.GetIssue(ctx, run.IssueID); err != nil {
		return err
	}

	runData, eventData, err := marshalPair(run, event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyRunPrefix+run.RunID.String(), runData, 0)
	pipe.RPush(ctx, keyRunList, run.RunID.String())
	pipe.RPush(ctx, keyAuditList, eventData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

func (s *RedisStore) GetRun(ctx context.Context, id uuid.UUID) (models.Run, error) {
	var run models.Run
	if err := s.getJSON(ctx, keyRunPrefix+id.String(), &run); err != nil {
		return models.Run{}, err
	}
	return run, nil
}

func (s *RedisStore) ListRuns(ctx context.Context, issueID uuid.UUID) ([]models.Run, error) {
	ids, err := s.client.LRange(ctx, keyRunList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]models.Run, 0, len(ids))
	for _, id := range ids {
		var run models.Run
		if err := s.getJSON(ctx, keyRunPrefix+id, &run); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if issueID == uuid.Nil || run.IssueID == issueID {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func (s *RedisStore) RecordDecision(ctx context.Context, decision models.Decision, status models.IssueStatus, event models.AuditEvent) error {
	issue, err := s.GetIssue(ctx, decision.IssueID)
	if err != nil {
		return err
	}
	if _, err := s.GetRun(ctx, decision.RunID); err != nil {
		return err
	}

	issue.Status = status
	issueData, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("marshal issue: %w", err)
	}
	decisionData, eventData, err := marshalPair(decision, event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyDecisionPrefix+decision.DecisionID.String(), decisionData, 0)
	pipe.RPush(ctx, keyDecisionList, decision.DecisionID.String())
	pipe.Set(ctx, keyIssuePrefix+issue.IssueID.String(), issueData, 0)
	pipe.RPush(ctx, keyAuditList, eventData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

func (s *RedisStore) ListDecisions(ctx context.Context, issueID uuid.UUID) ([]models.Decision, error) {
	ids, err := s.client.LRange(ctx, keyDecisionList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	decisions := make([]models.Decision, 0, len(ids))
	for _, id := range ids {
		var decision models.Decision
		if err := s.getJSON(ctx, keyDecisionPrefix+id, &decision); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if issueID == uuid.Nil || decision.IssueID == issueID {
			decisions = append(decisions, decision)
		}
	}
	return decisions, nil
}

func (s *RedisStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	entries, err := s.client.LRange(ctx, keyAuditList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	events := make([]models.AuditEvent, 0, len(entries))
	for _, entry := range entries {
		var event models.AuditEvent
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		if matchesAudit(event, filter) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (s *RedisStore) AddDocument(ctx context.Context, doc models.Document, event models.AuditEvent) error {
	docData, eventData, err := marshalPair(doc, event)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyDocPrefix+doc.DocID.String(), docData, 0)
	pipe.RPush(ctx, keyDocList, doc.DocID.String())
	pipe.RPush(ctx, keyAuditList, eventData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *RedisStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	ids, err := s.client.LRange(ctx, keyDocList, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	docs := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		var doc models.Document
		if err := s.getJSON(ctx, keyDocPrefix+id, &doc); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func marshalPair(record any, event models.AuditEvent) ([]byte, []byte, error) {
	recordData, err := json.Marshal(record)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal record: %w", err)
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return recordData, eventData, nil
}
