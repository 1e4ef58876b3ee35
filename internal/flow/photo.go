package flow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/set-night/memoirbot/internal/domain"
)

// PhotoQuestions are asked for every photo, in order.
var PhotoQuestions = []string{
	"いつ頃の写真ですか？（例：2015年春、10年前、子供の頃）",
	"どこで撮った写真ですか？",
	"この時の思い出やエピソードを教えてください",
}

const revisionPrefix = "[修正要望] "

// Photo turns a batch of photos into short stories, one interview per photo.
type Photo struct {
	table *table
	now   func() time.Time
}

func NewPhoto(opts ...Option) *Photo {
	o := buildOptions(opts)
	p := &Photo{now: o.now}
	p.table = newTable(domain.FlowPhoto, o.now,
		domain.StateCollectingPhotos,
		domain.StateQuestioning,
		domain.StateStoryGenerated,
		domain.StateCompleted,
	).
		on(domain.StateCollectingPhotos, InputImage, p.addPhoto).
		on(domain.StateCollectingPhotos, InputText, p.finishCollecting).
		on(domain.StateQuestioning, InputText, p.answer).
		on(domain.StateStoryGenerated, InputText, p.review)
	p.table.hint = p.Help
	p.table.closed = func(*domain.Session) string { return msgPhotoDone }
	return p
}

func (p *Photo) Type() domain.FlowType { return domain.FlowPhoto }

func (p *Photo) Start(sp StartParams) (*domain.Session, string, error) {
	s := newSession(domain.FlowPhoto, "photo", sp, domain.StateCollectingPhotos, p.now())
	return s, msgPhotoStart, nil
}

func (p *Photo) Accept(s *domain.Session, in Input) Result {
	return p.table.accept(s, in)
}

func (p *Photo) Active(s *domain.Session) bool {
	switch s.State {
	case domain.StateCollectingPhotos, domain.StateQuestioning, domain.StateStoryGenerated:
		return true
	}
	return false
}

func (p *Photo) Help(s *domain.Session) string {
	switch s.State {
	case domain.StateCollectingPhotos:
		return "📸 思い出の写真を送ってください。\n送り終わったら「完了」と送信してください。"
	case domain.StateQuestioning:
		photo := s.Current()
		if photo == nil || photo.QuestionIndex >= len(PhotoQuestions) {
			return msgStoryPending
		}
		return "✍️ 質問にテキストで答えてください。\n\n" + PhotoQuestions[photo.QuestionIndex]
	case domain.StateStoryGenerated:
		return "👍 いいね（次へ）\n🔄 再生成\n✏️ 修正（テキストで修正内容を送信）\nのいずれかで返信してください。"
	default:
		return msgPhotoDone
	}
}

func (p *Photo) addPhoto(s *domain.Session, in Input) Result {
	s.Photos = append(s.Photos, domain.PhotoItem{
		ID:       "photo_" + shortID(8),
		ImageURL: in.Image,
		AddedAt:  p.now(),
	})
	return accept(fmt.Sprintf("写真%d枚目を受け取りました📸\n他にも写真があれば送ってください。\n完了したら「完了」と送信してください。", len(s.Photos)))
}

func (p *Photo) finishCollecting(s *domain.Session, in Input) Result {
	if !equalsAny(in.Text, photoDoneWords) {
		return reject(p.Help(s))
	}
	if len(s.Photos) == 0 {
		return reject("写真が1枚も登録されていません。まず写真を送ってください📸")
	}
	next := nextUnapproved(s.Photos, 0)
	s.CurrentPhoto = next
	s.Photos[next].QuestionIndex = 0
	s.State = domain.StateQuestioning
	return accept(fmt.Sprintf(
		"✨ 写真を%d枚受け取りました！\n\nこれから各写真について質問しますので、\n答えてください\n\nそれでは、%d枚目の写真について教えてください！\n\n%s",
		len(s.Photos), next+1, PhotoQuestions[0],
	))
}

func (p *Photo) answer(s *domain.Session, in Input) Result {
	photo := s.Current()
	if photo == nil {
		return reject(msgPhotoMissing)
	}
	if photo.QuestionIndex >= len(PhotoQuestions) {
		// The story for this photo is still outstanding; ask again.
		return acceptWith(msgStoryPending, EffectGenerateStory)
	}
	text := in.trimmed()
	if text == "" {
		return reject(p.Help(s))
	}

	switch photo.QuestionIndex {
	case 0:
		photo.EstimatedDate = text
	case 1:
		photo.Location = text
	}
	photo.Answers = append(photo.Answers, text)
	photo.QuestionIndex++

	if photo.QuestionIndex < len(PhotoQuestions) {
		return accept("ありがとうございます！\n\n次の質問です：\n" + PhotoQuestions[photo.QuestionIndex])
	}
	return acceptWith(fmt.Sprintf("✨ %d枚目の写真の回答が完了しました！\nAIがストーリーを生成しています...⏳", s.CurrentPhoto+1), EffectGenerateStory)
}

func (p *Photo) review(s *domain.Session, in Input) Result {
	photo := s.Current()
	if photo == nil {
		return reject(msgPhotoMissing)
	}
	text := in.trimmed()
	if text == "" {
		return reject(p.Help(s))
	}

	switch {
	case containsAny(text, approveWords):
		photo.Approved = true
		next := nextUnapproved(s.Photos, s.CurrentPhoto+1)
		if next < 0 {
			s.State = domain.StateCompleted
			return acceptWith("すべての写真のストーリーが完成しました！\nPDFを生成しています...⏳", EffectRender)
		}
		s.CurrentPhoto = next
		s.Photos[next].QuestionIndex = 0
		s.State = domain.StateQuestioning
		return accept(fmt.Sprintf("✨ 次の写真です（%d/%d枚目）\n\n%s", next+1, len(s.Photos), PhotoQuestions[0]))
	case containsAny(text, regenerateWords):
		return acceptWith("ストーリーを再生成しています...⏳", EffectGenerateStory)
	default:
		photo.Answers = append(photo.Answers, revisionPrefix+text)
		return acceptWith("修正内容を反映してストーリーを再生成しています...⏳", EffectGenerateStory)
	}
}

var (
	// ErrPhotoChanged means the photo a story was written for is no longer
	// under discussion.
	ErrPhotoChanged = errors.New("story is for another photo")
	// ErrStaleStory means the photo's answers changed while the story was
	// being written.
	ErrStaleStory = errors.New("story is based on outdated answers")
)

// StoryRequest is the input of one story generation.
type StoryRequest struct {
	PhotoID string
	Answers []string
}

// StoryRequest returns what a story for the current photo is generated from.
// It reports false while the current photo still has open questions.
func (p *Photo) StoryRequest(s *domain.Session) (StoryRequest, bool) {
	photo := s.Current()
	if photo == nil || photo.QuestionIndex < len(PhotoQuestions) {
		return StoryRequest{}, false
	}
	return StoryRequest{PhotoID: photo.ID, Answers: slices.Clone(photo.Answers)}, true
}

// AttachStory stores a story generated for req on the current photo and
// moves the session to story review. It returns the approval prompt.
func (p *Photo) AttachStory(s *domain.Session, req StoryRequest, story string) (string, error) {
	if s.Flow != domain.FlowPhoto {
		return "", fmt.Errorf("attach story to %s session: %w", s.Flow, domain.ErrInvalidInput)
	}
	if s.State != domain.StateQuestioning && s.State != domain.StateStoryGenerated {
		return "", fmt.Errorf("attach story in state %s: %w", s.State, domain.ErrInvalidInput)
	}
	photo := s.Current()
	if photo == nil || photo.ID != req.PhotoID {
		return "", fmt.Errorf("attach story for %s: %w", req.PhotoID, ErrPhotoChanged)
	}
	if photo.QuestionIndex < len(PhotoQuestions) {
		return "", errors.New("attach story: current photo has unanswered questions")
	}
	if len(photo.Answers) != len(req.Answers) {
		return "", fmt.Errorf("attach story for %s: %w", req.PhotoID, ErrStaleStory)
	}
	story = strings.TrimSpace(story)
	if story == "" {
		return "", domain.ErrEmptyGeneration
	}
	photo.Story = story
	s.State = domain.StateStoryGenerated
	s.Touch(p.now())
	return StoryApprovalMessage(story), nil
}

// StoryApprovalMessage presents a generated story for review.
func StoryApprovalMessage(story string) string {
	return "【生成されたストーリー】\n\n" + story + "\n\nこのままでOKですか？\n👍 いいね（次へ）\n🔄 再生成\n✏️ 修正（テキストで修正内容を送信）"
}

// nextUnapproved returns the index of the first photo at or after from
// whose story is not approved yet, or -1.
func nextUnapproved(photos []domain.PhotoItem, from int) int {
	for i := from; i < len(photos); i++ {
		if !photos[i].Approved {
			return i
		}
	}
	return -1
}

const (
	msgPhotoStart   = "📸 写真で自分史を作りましょう！\n\nまず、思い出の写真を送ってください。\n複数枚送ってもOKです✨\n\n送り終わったら「完了」と送信してください。"
	msgPhotoDone    = "この写真自分史は完成しています。新しく作る場合は「写真で自分史」と送信してください。"
	msgPhotoMissing = "現在処理中の写真が見つかりません。「キャンセル」で最初からやり直してください。"
	msgStoryPending = "ストーリーを生成しています...⏳\n少々お待ちください。"
)
