package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

var testNow = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func quickSession() *domain.Session {
	return &domain.Session{
		ID:     "quick_abc",
		Flow:   domain.FlowQuick,
		UserID: "U1",
		State:  domain.StateEditing,
		Data: domain.MemoirData{
			Title:          "私の人生",
			Subtitle:       "〜これまでの道のり〜",
			Author:         "あなた",
			CoverImageURL:  "https://example.com/cover.jpg",
			SpreadImageURL: "https://example.com/spread.jpg",
			SingleImageURL: "https://example.com/single.jpg",
		},
	}
}

func TestBuild_QuickCover(t *testing.T) {
	doc, err := Build(quickSession(), VariantCover, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, TemplateMemoirCover, doc.Template)
	assert.Equal(t, "2024年05月", doc.Date)
	assert.Equal(t, "https://example.com/cover.jpg", doc.CoverImage)
	assert.Empty(t, doc.SpreadImage)
	assert.Equal(t, 1, doc.PageCount())
	assert.Equal(t, "memoir_私の人生_20240520_100000.pdf", doc.Filename(testNow))
}

func TestBuild_QuickFull(t *testing.T) {
	s := quickSession()
	s.Data.Date = "2023年12月"
	doc, err := Build(s, VariantFull, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, TemplateMemoir, doc.Template)
	assert.Equal(t, "2023年12月", doc.Date)
	assert.Equal(t, "https://example.com/single.jpg", doc.SingleImage)
	assert.Nil(t, doc.Profile)
	assert.Len(t, doc.imageRefs(), 3)
}

func TestBuild_ProfileDefaultsDescription(t *testing.T) {
	s := &domain.Session{
		ID:   "profile_1",
		Flow: domain.FlowProfile,
		Data: domain.MemoirData{
			Title:  "私の人生の歩み",
			Author: "山田",
			Profile: domain.Profile{
				BirthPlace: "東京",
				Hobbies:    []string{"釣り"},
			},
			Timeline: []domain.TimelineEntry{
				{Year: 1985, Title: "誕生"},
				{Year: 1991, Title: "小学校入学", Description: "緊張した", Image: "/tmp/x.jpg"},
			},
		},
	}
	doc, err := Build(s, VariantFull, nil, testNow)
	require.NoError(t, err)

	require.NotNil(t, doc.Profile)
	assert.Equal(t, "山田", doc.Profile.Name)
	require.Len(t, doc.Timeline, 2)
	assert.Equal(t, "1985年に起こった重要な出来事です。", doc.Timeline[0].Description)
	assert.Equal(t, "緊張した", doc.Timeline[1].Description)
	assert.Equal(t, "/tmp/x.jpg", doc.Timeline[1].Image)
}

func TestBuild_Photo(t *testing.T) {
	s := &domain.Session{
		ID:     "photo_1",
		Flow:   domain.FlowPhoto,
		UserID: "U1234567890abcdef",
		Photos: []domain.PhotoItem{
			{ImageURL: "a.jpg", Story: "海へ行った。", EstimatedDate: "1995年", Location: "湘南"},
			{ImageURL: "b.jpg"},
		},
	}
	doc, err := Build(s, VariantFull, nil, testNow)
	require.NoError(t, err)

	assert.Equal(t, TemplatePhotoMemoir, doc.Template)
	assert.Equal(t, "思い出のアルバム", doc.Title)
	require.Len(t, doc.Photos, 2)
	assert.Equal(t, 2, doc.Photos[1].Number)
	assert.Equal(t, "（ストーリー未生成）", doc.Photos[1].Story)
	assert.Equal(t, "photo_memoir_U1234567_20240520_100000.pdf", doc.Filename(testNow))
}

func TestBuild_Media(t *testing.T) {
	reg := schema.Default()
	tpl, err := reg.Get("memoir_vertical")
	require.NoError(t, err)

	s := &domain.Session{
		ID:         "media_1",
		Flow:       domain.FlowMedia,
		TemplateID: tpl.ID,
		Pages:      tpl.EmptyPages(),
	}
	s.Page("title_page").Data["title"] = "ぼくの歩み"
	s.Page("title_page").Data["cover_image"] = "https://example.com/c.jpg"
	s.Page("spread_1").Data["story_text"] = "本文"

	doc, err := Build(s, VariantFull, reg, testNow)
	require.NoError(t, err)

	assert.Equal(t, TemplateMedia, doc.Template)
	assert.True(t, doc.Vertical())
	assert.Equal(t, "ぼくの歩み", doc.Title)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "本文", doc.Pages[1].Text("story_text"))
	assert.Len(t, doc.imageRefs(), 1)
	assert.Equal(t, "memoir_vertical_20240520_100000.pdf", doc.Filename(testNow))
}

func TestBuild_MediaUnknownTemplate(t *testing.T) {
	s := &domain.Session{Flow: domain.FlowMedia, TemplateID: "nope"}
	_, err := Build(s, VariantFull, schema.Default(), testNow)
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"私の人生/2024!", "私の人生2024"},
		{"  my-life_story  ", "my-life_story"},
		{"!!!", ""},
		{"あいうえおかきくけこさしすせそたちつてとなにぬねの", "あいうえおかきくけこさしすせそたちつてと"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeName(tt.in, 20))
		})
	}
}
