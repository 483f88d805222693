package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pavelanni/examreader/internal/model"
)

// TextHash returns the cache key for an exam text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetCachedQuestions returns the questions extracted earlier from the text
// with the given hash. ok is false on a cache miss.
func (s *Store) GetCachedQuestions(hash string) (questions []model.Question, tier string, ok bool, err error) {
	var data string
	err = s.db.QueryRow(
		`SELECT questions_json, tier FROM extraction_cache WHERE text_hash = ?`, hash,
	).Scan(&data, &tier)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	if err := json.Unmarshal([]byte(data), &questions); err != nil {
		return nil, "", false, fmt.Errorf("decode cached questions: %w", err)
	}
	return questions, tier, true, nil
}

// PutCachedQuestions stores extracted questions under the text hash.
func (s *Store) PutCachedQuestions(hash, tier string, questions []model.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO extraction_cache (text_hash, tier, question_count, questions_json, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(text_hash) DO UPDATE SET tier = ?, question_count = ?, questions_json = ?`,
		hash, tier, len(questions), string(data), s.now(),
		tier, len(questions), string(data),
	)
	return err
}
