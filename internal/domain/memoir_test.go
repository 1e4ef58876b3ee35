package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMergeTimeline_KeepsImageWhenFieldMissing(t *testing.T) {
	existing := []TimelineEntry{{Year: 1991, Title: "A", Image: "X"}}

	got := MergeTimeline(existing, []TimelineEdit{{Year: 1991, Title: "A"}})

	require.Len(t, got, 1)
	assert.Equal(t, "X", got[0].Image)
	assert.Equal(t, "A", got[0].Title)
}

func TestMergeTimeline(t *testing.T) {
	existing := []TimelineEntry{
		{Year: 1985, Title: "誕生", Image: "/media/image/a"},
		{Year: 1991, Title: "小学校入学", Image: "/media/image/b"},
	}

	tests := []struct {
		name     string
		incoming []TimelineEdit
		want     []TimelineEntry
	}{
		{
			name:     "explicit image replaces stored one",
			incoming: []TimelineEdit{{Year: 1985, Title: "誕生", Image: strPtr("/media/image/c")}},
			want:     []TimelineEntry{{Year: 1985, Title: "誕生", Image: "/media/image/c"}},
		},
		{
			name:     "explicit empty image clears it",
			incoming: []TimelineEdit{{Year: 1991, Title: "入学", Image: strPtr("")}},
			want:     []TimelineEntry{{Year: 1991, Title: "入学"}},
		},
		{
			name: "merge by year not by position",
			incoming: []TimelineEdit{
				{Year: 1991, Title: "小学校入学"},
				{Year: 2000, Title: "新しい出来事"},
				{Year: 1985, Title: "誕生"},
			},
			want: []TimelineEntry{
				{Year: 1991, Title: "小学校入学", Image: "/media/image/b"},
				{Year: 2000, Title: "新しい出来事"},
				{Year: 1985, Title: "誕生", Image: "/media/image/a"},
			},
		},
		{
			name:     "empty replacement drops entries",
			incoming: []TimelineEdit{},
			want:     []TimelineEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeTimeline(existing, tt.incoming)
			assert.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Year, got[i].Year)
				assert.Equal(t, tt.want[i].Title, got[i].Title)
				assert.Equal(t, tt.want[i].Image, got[i].Image)
			}
		})
	}
}

func TestMemoirData_Apply(t *testing.T) {
	d := MemoirData{
		Title:    "旧タイトル",
		Author:   "あなた",
		Profile:  Profile{Name: "鈴木太郎", BirthPlace: "東京"},
		Timeline: []TimelineEntry{{Year: 1991, Title: "A", Image: "X"}},
	}
	hobbies := []string{"読書", "旅行"}
	tl := []TimelineEdit{{Year: 1991, Title: "A2"}}

	d.Apply(MemoirEdit{
		Title:    strPtr("新タイトル"),
		Profile:  &ProfileEdit{Occupation: strPtr("教師"), Hobbies: &hobbies},
		Timeline: &tl,
	})

	assert.Equal(t, "新タイトル", d.Title)
	assert.Equal(t, "あなた", d.Author)
	assert.Equal(t, "鈴木太郎", d.Profile.Name)
	assert.Equal(t, "東京", d.Profile.BirthPlace)
	assert.Equal(t, "教師", d.Profile.Occupation)
	assert.Equal(t, []string{"読書", "旅行"}, d.Profile.Hobbies)
	require.Len(t, d.Timeline, 1)
	assert.Equal(t, "A2", d.Timeline[0].Title)
	assert.Equal(t, "X", d.Timeline[0].Image)
}

func TestMemoirData_ApplyWithoutTimelineKeepsIt(t *testing.T) {
	d := MemoirData{Timeline: []TimelineEntry{{Year: 1991, Title: "A"}}}
	d.Apply(MemoirEdit{Author: strPtr("花子")})
	assert.Len(t, d.Timeline, 1)
	assert.Equal(t, "花子", d.Author)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"読書", "旅行", "料理"}, SplitList("読書、旅行, 料理"))
	assert.Equal(t, []string{"a"}, SplitList(" a ,, "))
	assert.Nil(t, SplitList(""))
}

func TestSessionClone(t *testing.T) {
	s := &Session{
		ID:     "s",
		Photos: []PhotoItem{{ID: "p", Answers: []string{"2015年春"}}},
		Pages:  []PageData{{PageID: "title_page", Data: map[string]any{"title": "x", "tags": []string{"a"}}}},
	}
	c := s.Clone()
	c.Photos[0].Answers[0] = "changed"
	c.Pages[0].Data["title"] = "y"
	c.Pages[0].Data["tags"].([]string)[0] = "b"

	assert.Equal(t, "2015年春", s.Photos[0].Answers[0])
	assert.Equal(t, "x", s.Pages[0].Data["title"])
	assert.Equal(t, "a", s.Pages[0].Data["tags"].([]string)[0])
}

func TestMessageTypeFor(t *testing.T) {
	assert.Equal(t, MessageTypeImage, MessageTypeFor("image/jpeg"))
	assert.Equal(t, MessageTypeVideo, MessageTypeFor("video/mp4"))
	assert.Equal(t, MessageTypeAudio, MessageTypeFor("audio/m4a"))
	assert.Equal(t, MessageTypeFile, MessageTypeFor("application/pdf"))
}
