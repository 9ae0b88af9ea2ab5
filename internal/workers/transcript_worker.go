package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicechallan/internal/models"
	"github.com/yoockh/voicechallan/internal/services"
	"github.com/yoockh/voicechallan/internal/utils"
)

const (
	DefaultStream = "transcript:stream"
	DefaultGroup  = "transcript-workers"
)

// ItemsChannel is the pub/sub channel a draft's parse results are published on.
func ItemsChannel(draftID string) string { return "draft:" + draftID + ":items" }

// TranscriptWorkerPool consumes dictated transcript chunks from Redis streams,
// appends their items to the draft and publishes the result per draft.
//
// The stream is split into NumWorkers shards and each draft always hashes to
// the same shard, which has exactly one consumer; a draft's chunks are applied
// one at a time in the order they were enqueued. Every process sharing the
// streams must run with the same NumWorkers.
type TranscriptWorkerPool struct {
	Redis       *redis.Client
	Transcripts services.TranscriptService
	NumWorkers  int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

type ItemsMessage struct {
	Type    string        `json:"type"` // items
	DraftID string        `json:"draft_id"`
	Seq     int64         `json:"seq"`
	Added   []models.Item `json:"added"`
	Items   []models.Item `json:"items"`
}

type StatusMessage struct {
	Type    string `json:"type"`   // status
	Status  string `json:"status"` // queued|failed|ended
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Seq     int64  `json:"seq,omitempty"`
}

func (p *TranscriptWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Transcripts == nil {
		return errors.New("TranscriptWorkerPool missing dependency: Redis/Transcripts must be set")
	}
	p.setDefaults()

	for shard := 0; shard < p.NumWorkers; shard++ {
		err := p.Redis.XGroupCreateMkStream(ctx, p.shardStream(shard), p.Group, "0").Err()
		if err != nil && !isBusyGroup(err) {
			return err
		}
	}

	for shard := 0; shard < p.NumWorkers; shard++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(shard+1)
		go p.runConsumer(ctx, p.shardStream(shard), consumer)
	}
	p.Logger.WithFields(logrus.Fields{"stream": p.Stream, "workers": p.NumWorkers}).Info("transcript workers started")
	return nil
}

func (p *TranscriptWorkerPool) setDefaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

// Enqueue adds a transcript chunk for draftID to the draft's shard stream.
func (p *TranscriptWorkerPool) Enqueue(ctx context.Context, draftID, text string, seq int64) error {
	p.setDefaults()
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.StreamFor(draftID),
		Values: map[string]any{
			"draft_id": draftID,
			"text":     text,
			"seq":      strconv.FormatInt(seq, 10),
			"ts_unix":  strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// StreamFor returns the shard stream draftID's chunks are queued on.
func (p *TranscriptWorkerPool) StreamFor(draftID string) string {
	p.setDefaults()
	return p.shardStream(int(xxhash.Sum64String(draftID) % uint64(p.NumWorkers)))
}

func (p *TranscriptWorkerPool) shardStream(shard int) string {
	return p.Stream + ":" + strconv.Itoa(shard)
}

func (p *TranscriptWorkerPool) runConsumer(ctx context.Context, stream, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithFields(logrus.Fields{"stream": stream, "consumer": consumer}).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, xs := range res {
			for _, msg := range xs.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TranscriptWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	draftID := getStr("draft_id")
	if draftID == "" {
		return
	}
	seq, _ := strconv.ParseInt(getStr("seq"), 10, 64)
	text := getStr("text")

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"draft_id": draftID,
		"seq":      seq,
	})
	ch := ItemsChannel(draftID)

	d, added, err := p.Transcripts.AppendTranscript(ctx, draftID, text)
	if err != nil {
		log.WithError(err).Warn("append transcript failed")
		code := utils.CodeInternal
		var ae *utils.AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
		p.publish(ctx, ch, StatusMessage{
			Type:    "status",
			Status:  "failed",
			Code:    string(code),
			Message: "failed to update draft",
			Seq:     seq,
		})
		return
	}

	log.WithField("added", len(added)).Debug("transcript chunk parsed")
	p.publish(ctx, ch, ItemsMessage{
		Type:    "items",
		DraftID: draftID,
		Seq:     seq,
		Added:   added,
		Items:   d.Items,
	})
}

func (p *TranscriptWorkerPool) publish(ctx context.Context, channel string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.Redis.Publish(ctx, channel, string(b)).Err(); err != nil {
		p.Logger.WithError(err).WithField("channel", channel).Warn("publish failed")
	}
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
