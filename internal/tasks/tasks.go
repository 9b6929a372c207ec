package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"kliklens/studioops/internal/config"
	"kliklens/studioops/internal/messaging"
	"kliklens/studioops/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeMessageDeliver = "message:deliver"
	TypeFollowUpSweep  = "workflow:followup:sweep"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// MessageTaskPayload is the payload of a message:deliver task.
type MessageTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// EnqueueMessage builds and enqueues a message:deliver task.
func EnqueueMessage(ctx context.Context, client *asynq.Client, payload MessageTaskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message task payload: %w", err)
	}
	task := asynq.NewTask(TypeMessageDeliver, payloadBytes)
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue message task: %w", err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks. It holds dependencies
// needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	sender          messaging.Sender
	templateService services.ITemplateService
	workflowService services.IWorkflowService
	taskClient      *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	sender messaging.Sender,
	templateService services.ITemplateService,
	workflowService services.IWorkflowService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		sender:          sender,
		templateService: templateService,
		workflowService: workflowService,
		taskClient:      taskClient,
	}
}

// SetupServer configures and runs an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) *asynq.Server {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeMessageDeliver, processor.HandleMessageDeliverTask)
		mux.HandleFunc(TypeFollowUpSweep, processor.HandleFollowUpSweepTask)
		fmt.Println("Registered background task handlers.")
	} else {
		fmt.Println("Running in API mode, no task server started.")
		return nil
	}

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("Could not run Asynq server: %v", err)
		}
	}()

	return srv
}

// StartFollowUpScheduler enqueues a follow-up sweep on a fixed period until
// the context is cancelled.
func StartFollowUpScheduler(ctx context.Context, client *asynq.Client, period time.Duration) {
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task := asynq.NewTask(TypeFollowUpSweep, nil)
				if _, err := client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
					log.Printf("WARN: failed to enqueue follow-up sweep: %v", err)
				}
			}
		}
	}()
}

// --- Task Handlers ---

// HandleMessageDeliverTask renders a template and hands the message to the
// configured sender.
func (p *TaskProcessor) HandleMessageDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload MessageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal message task payload: %v: %w", err, asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = "id-ID"
	}

	tmpl, err := p.templateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting message template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("message template not found: %w", asynq.SkipRetry)
	}

	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	if err := p.sender.Send(ctx, []string{payload.To}, subjectRendered, []byte(sb.String())); err != nil {
		log.Printf("Message delivery failed for %s (will retry): %v", payload.To, err)
		return err
	}

	return nil
}

// HandleFollowUpSweepTask finds overdue confirmation requests and enqueues a
// follow-up message for each.
func (p *TaskProcessor) HandleFollowUpSweepTask(ctx context.Context, t *asynq.Task) error {
	items, err := p.workflowService.PendingFollowUps(ctx, p.cfg.FollowUpAfter)
	if err != nil {
		log.Printf("Error running follow-up sweep: %v", err)
		return err
	}
	if len(items) == 0 {
		return nil
	}

	enqueued := 0
	for _, item := range items {
		if item.Recipient == "" {
			continue
		}
		payload := MessageTaskPayload{
			To:         item.Recipient,
			TemplateID: "follow_up",
			Data: map[string]interface{}{
				"project_name": item.ProjectName,
				"sub_status":   item.SubStatus,
			},
		}
		if err := EnqueueMessage(ctx, p.taskClient, payload); err != nil {
			log.Printf("WARN: failed to enqueue follow-up for project %s: %v", item.ProjectID.String(), err)
			continue
		}
		enqueued++
	}

	log.Printf("Follow-up sweep finished: %d overdue, %d messages enqueued.", len(items), enqueued)
	return nil
}
