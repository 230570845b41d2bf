package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
	"websocket-relay/internal/entity"
	"websocket-relay/internal/repo"
)

// recordingsKey это множество идентификаторов всех записей
const recordingsKey = "recordings"

type RecordingIndex struct {
	redisClient *redis.Client
}

func NewRecordingIndex(client *redis.Client) repo.RecordingIndex {
	return &RecordingIndex{
		redisClient: client,
	}
}

func recordingKey(id string) string {
	return fmt.Sprintf("recording:%s", id)
}

// setRecording сериализует запись через gob и кладёт её в redis вместе с индексом
func (r RecordingIndex) setRecording(ctx context.Context, client redis.Cmdable, recording *entity.Recording) error {
	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)
	if err := encoder.Encode(*recording); err != nil {
		return err
	}
	if err := client.Set(ctx, recordingKey(recording.ID), buffer.Bytes(), 0).Err(); err != nil {
		return err
	}
	return client.SAdd(ctx, recordingsKey, recording.ID).Err()
}

func decodeRecording(data []byte) (*entity.Recording, error) {
	var recording entity.Recording
	decoder := gob.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&recording); err != nil {
		return nil, err
	}
	return &recording, nil
}

func (r RecordingIndex) SaveRecording(recording *entity.Recording) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	key := recordingKey(recording.ID)
	err := r.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return r.setRecording(ctx, pipe, recording)
		})
		return err
	}, key)
	if err != nil {
		return errors.Join(repo.ErrInternal, err)
	}
	return nil
}

func (r RecordingIndex) GetRecording(id string) (*entity.Recording, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	data, err := r.redisClient.Get(ctx, recordingKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, repo.ErrRecordingNotFound
	case err != nil:
		return nil, errors.Join(repo.ErrInternal, err)
	}
	recording, err := decodeRecording(data)
	if err != nil {
		return nil, errors.Join(repo.ErrInternal, err)
	}
	return recording, nil
}

func (r RecordingIndex) ListRecordings() ([]entity.Recording, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ids, err := r.redisClient.SMembers(ctx, recordingsKey).Result()
	if err != nil {
		return nil, errors.Join(repo.ErrInternal, err)
	}
	recordings := make([]entity.Recording, 0, len(ids))
	if len(ids) == 0 {
		return recordings, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordingKey(id)
	}
	values, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Join(repo.ErrInternal, err)
	}
	for _, value := range values {
		// запись могла быть удалена между SMEMBERS и MGET
		data, ok := value.(string)
		if !ok {
			continue
		}
		recording, err := decodeRecording([]byte(data))
		if err != nil {
			return nil, errors.Join(repo.ErrInternal, err)
		}
		recordings = append(recordings, *recording)
	}
	return recordings, nil
}

func (r RecordingIndex) DeleteRecording(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var deleted *redis.IntCmd
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, recordingKey(id))
		pipe.SRem(ctx, recordingsKey, id)
		return nil
	})
	if err != nil {
		return errors.Join(repo.ErrInternal, err)
	}
	if deleted.Val() == 0 {
		return repo.ErrRecordingNotFound
	}
	return nil
}
