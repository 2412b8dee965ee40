package services

import (
	"context"
	"testing"

	"speech-practice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedFixture = `
tags:
  - name: greetings
    category: topic
  - name: present-simple
    category: tense
speeches:
  - audio_url: https://cdn.example.com/seed/hello.mp3
    text: Hello, how are you?
    level: a1
    type: question
    tags: [greetings]
  - audio_url: https://cdn.example.com/seed/fine.mp3
    text: I am fine, thank you.
    level: A1
    tags: [greetings, present-simple, polite]
`

func TestApplySeed_Idempotent(t *testing.T) {
	db := newTestDB(t)
	seed, err := ParseSeed([]byte(seedFixture))
	require.NoError(t, err)
	require.Len(t, seed.Speeches, 2)

	report, err := ApplySeed(context.Background(), db, seed)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TagsCreated)
	assert.Equal(t, 2, report.SpeechesCreated)

	var sp models.Speech
	require.NoError(t, db.Preload("Tags").Where("text = ?", "I am fine, thank you.").First(&sp).Error)
	assert.Equal(t, models.SpeechTypeAnswer, sp.Type)
	assert.Len(t, sp.Tags, 3)

	again, err := ApplySeed(context.Background(), db, seed)
	require.NoError(t, err)
	assert.Zero(t, again.TagsCreated)
	assert.Zero(t, again.SpeechesCreated)
	assert.Equal(t, 2, again.SpeechesSkipped)
}

func TestApplySeed_RejectsBadLevel(t *testing.T) {
	db := newTestDB(t)
	seed := &SeedData{Speeches: []SeedSpeech{{AudioURL: "https://x/a.mp3", Text: "Hi", Level: "Z3"}}}

	_, err := ApplySeed(context.Background(), db, seed)
	assert.Equal(t, KindValidation, KindOf(err))

	var n int64
	require.NoError(t, db.Model(&models.Speech{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestParseSeed_Malformed(t *testing.T) {
	_, err := ParseSeed([]byte("tags: [unterminated"))
	assert.Error(t, err)
}
