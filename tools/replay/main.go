package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Replays historical log records from a CSV export onto the stream so the
// pipeline can be exercised end to end. Redelivered rows are collapsed by
// the consumer's dedup key, so replaying the same file twice is harmless.
func main() {
	brokers := flag.String("brokers", "localhost:9092", "Comma-separated Kafka broker list")
	topic := flag.String("topic", "network-logs", "Target topic")
	csvPath := flag.String("csv", "pca_merged_logs.csv", "CSV file of historical logs")
	eps := flag.Int("eps", 10, "Events per second limit")
	batchSize := flag.Int("batch", 10, "Messages per produce batch")
	flag.Parse()

	cfg := sarama.NewConfig()
	cfg.ClientID = "replay-" + uuid.NewString()[:8]
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(strings.Split(*brokers, ","), cfg)
	if err != nil {
		log.Fatalf("failed to create producer: %v", err)
	}
	defer producer.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open CSV: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		log.Fatalf("failed to read CSV header: %v", err)
	}

	log.Printf("Replaying %s to %s (topic %s) at %d events/s", *csvPath, *brokers, *topic, *eps)

	limiter := rate.NewLimiter(rate.Limit(*eps), *batchSize)
	ctx := context.Background()

	var sent, failed, skipped int
	batch := make([]*sarama.ProducerMessage, 0, *batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := limiter.WaitN(ctx, len(batch)); err != nil {
			log.Fatalf("rate limiter: %v", err)
		}
		if err := producer.SendMessages(batch); err != nil {
			var perrs sarama.ProducerErrors
			if errors.As(err, &perrs) {
				failed += len(perrs)
				sent += len(batch) - len(perrs)
			} else {
				failed += len(batch)
			}
			log.Printf("produce batch failed: %v", err)
		} else {
			sent += len(batch)
		}
		batch = batch[:0]
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			log.Printf("skipping unreadable row: %v", err)
			continue
		}

		payload, key, err := encodeRow(header, row)
		if err != nil {
			skipped++
			log.Printf("skipping unencodable row: %v", err)
			continue
		}

		batch = append(batch, &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.ByteEncoder(payload),
		})
		if len(batch) >= *batchSize {
			flush()
		}
	}
	flush()

	log.Printf("Replay finished. Sent: %d, Failed: %d, Skipped: %d", sent, failed, skipped)
}

// nanSentinel stands in for non-finite cells during encoding. json.Marshal
// refuses NaN, so the sentinel string is spliced into a bare NaN token
// afterwards, matching how the upstream exporter wrote these payloads. The
// consumer's normalizer replaces the token before decoding.
const nanSentinel = "__nan__"

// encodeRow converts one CSV row to the producer's JSON encoding. Values
// that parse as finite numbers stay numeric; empty and non-finite cells
// become bare NaN tokens; everything else stays a string. The message key
// is the source IP so one source lands on one partition.
func encodeRow(header, row []string) ([]byte, string, error) {
	if len(row) != len(header) {
		return nil, "", fmt.Errorf("row has %d fields, header has %d", len(row), len(header))
	}

	event := make(map[string]any, len(header))
	for i, col := range header {
		cell := row[i]
		if cell == "" {
			event[col] = nanSentinel
			continue
		}
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				event[col] = nanSentinel
			} else {
				event[col] = v
			}
			continue
		}
		event[col] = cell
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, "", err
	}
	payload = bytes.ReplaceAll(payload, []byte(`"`+nanSentinel+`"`), []byte("NaN"))

	key, _ := event["Source_IP_Address"].(string)
	return payload, key, nil
}
