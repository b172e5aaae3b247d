package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif" // register decoders for the formats getUploadURL accepts
	"image/jpeg"
	_ "image/png"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/email"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/storage"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

// Enqueuer is the subset of asynq.Client the rest of the app depends on.
// Services and handlers take this instead of the concrete client so tests
// can mock it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// EmailTaskPayload is the payload for TypeEmailDelivery tasks.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Data       map[string]interface{} `json:"data"`
}

// NewEmailTask builds an email delivery task for the given recipient and
// template.
func NewEmailTask(to, templateID string, data map[string]interface{}) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(EmailTaskPayload{To: to, TemplateID: templateID, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payloadBytes), nil
}

// ImageTaskPayload is the payload for TypeImageProcess tasks.
type ImageTaskPayload struct {
	S3Key     string `json:"s3_key"`
	ListingID string `json:"listing_id"`
}

// NewImageProcessTask builds an image normalization task. Image tasks go to
// a dedicated queue so a flood of uploads cannot starve email delivery.
func NewImageProcessTask(s3Key string, listingID utils.SixID) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(ImageTaskPayload{S3Key: s3Key, ListingID: listingID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, payloadBytes, asynq.Queue("images")), nil
}

// ListingImages is what the image handler needs from the listing service.
type ListingImages interface {
	AddImage(ctx context.Context, listingID utils.SixID, imageKey string) error
}

// TaskProcessor holds the dependencies task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IS3Storage
	listings    ListingImages
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listings ListingImages,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		storage:     storageService,
		listings:    listings,
	}
}

// SetupServer configures an Asynq server, registers the handlers for the
// requested worker modes and runs it. Run blocks until the server is
// stopped, so callers start this in its own goroutine when combined with
// the API server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) *asynq.Server {
	opts := rdb.Options()
	serverOpt := asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"images":   5,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		log.Println("Registered email delivery task handler.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handler.")
	}

	if !isBgWorker && !isImageWorker {
		return nil
	}

	if err := srv.Run(mux); err != nil {
		log.Fatalf("Could not run Asynq server: %v", err)
	}

	return srv
}

// HandleEmailDeliveryTask renders the notification template and hands the
// message to the configured sender.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	subject, body, err := email.Render(payload.TemplateID, payload.Data)
	if err != nil {
		log.Printf("Error rendering email template %s: %v", payload.TemplateID, err)
		// Unknown template or bad data will not get better on retry.
		return fmt.Errorf("failed to render email template: %w", asynq.SkipRetry)
	}

	rawMessage := email.BuildRawMessage(p.cfg.SmtpFromAddress, payload.To, subject, body)

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, rawMessage); err != nil {
		log.Printf("Email delivery to %s failed: %v", payload.To, err)
		return err
	}

	log.Printf("Email task processed: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// HandleImageProcessTask downloads an uploaded original, normalizes it to
// a bounded JPEG and attaches the processed key to the listing. The
// original upload is removed afterwards.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID %q in payload: %w", payload.ListingID, asynq.SkipRetry)
	}

	body, err := p.storage.GetObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download image %s: %w", payload.S3Key, err)
	}
	defer body.Close()

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	imgData, err := io.ReadAll(io.LimitReader(body, maxSizeBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read image data for %s: %w", payload.S3Key, err)
	}
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size of %d MB, discarding.", payload.S3Key, p.cfg.ImageMaxSizeMB)
		if err := p.storage.DeleteObject(ctx, payload.S3Key); err != nil {
			log.Printf("Error deleting oversized upload %s: %v", payload.S3Key, err)
		}
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		img = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to encode processed image: %w", err)
	}

	processedKey := fmt.Sprintf("listing/%s/%s.jpg", listingID.String(), uuid.NewString())
	if err := p.storage.PutObject(ctx, processedKey, bytes.NewReader(buf.Bytes()), "image/jpeg"); err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	if err := p.listings.AddImage(ctx, listingID, processedKey); err != nil {
		return fmt.Errorf("failed to attach image %s to listing %s: %w", processedKey, payload.ListingID, err)
	}

	if err := p.storage.DeleteObject(ctx, payload.S3Key); err != nil {
		log.Printf("Error deleting original upload %s: %v", payload.S3Key, err)
	}

	log.Printf("Image task processed: Key=%s, ListingID=%s", processedKey, payload.ListingID)
	return nil
}
