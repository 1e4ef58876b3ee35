package schema

// MemoirVertical is the vertical-writing memoir layout: a cover, one
// image+story spread and one single image page.
func MemoirVertical() *Template {
	return &Template{
		ID:          "memoir_vertical",
		Name:        "自分史_縦書き",
		WritingMode: Vertical,
		Description: "縦書きの伝統的な自分史スタイル。タイトルページ、見開き画像ページ、単一画像+テキストページで構成されます。",
		Category:    "memoir",
		Pages: []Page{
			{
				ID:           "title_page",
				Type:         PageTitle,
				Number:       1,
				DisplayName:  "表紙",
				Description:  "自分史のタイトルと著者名を表示するカバーページ",
				TemplatePath: "title/modern-vertical-cover",
				Fields: []Field{
					{Name: "title", Kind: KindText, Required: true, MaxLength: 50, Description: "自分史のタイトル", Placeholder: "例：私の人生物語"},
					{Name: "author", Kind: KindText, Required: true, MaxLength: 30, Description: "著者名", Placeholder: "例：鈴木太郎"},
					{Name: "cover_image", Kind: KindImage, Required: true, Description: "カバー写真（縦長推奨）"},
				},
			},
			{
				ID:           "spread_1",
				Type:         PageSpreadImageText,
				Number:       2,
				DisplayName:  "見開きページ（画像+縦書き）",
				Description:  "左ページに大きな画像、右ページに縦書きのストーリー",
				TemplatePath: "spread/vertical-image-tategaki-spread",
				Deletable:    true,
				Duplicatable: true,
				Fields: []Field{
					{Name: "image", Kind: KindImage, Required: true, Description: "見開きページ用の写真（縦長推奨）"},
					{Name: "story_title", Kind: KindText, MaxLength: 30, Description: "ストーリーのタイトル", Placeholder: "例：幼少期の思い出"},
					{Name: "story_text", Kind: KindText, Required: true, MaxLength: 2000, Description: "縦書きのストーリー本文", Placeholder: "この時期の思い出やエピソードを書いてください"},
				},
			},
			{
				ID:           "single_1",
				Type:         PageSingleImageText,
				Number:       4,
				DisplayName:  "単一ページ（画像+テキスト）",
				Description:  "1ページに画像とテキストを配置",
				TemplatePath: "single/vertical-central-image-single",
				Deletable:    true,
				Duplicatable: true,
				Fields: []Field{
					{Name: "image", Kind: KindImage, Required: true, Description: "ページ用の写真"},
					{Name: "section_title", Kind: KindText, MaxLength: 30, Description: "セクションのタイトル", Placeholder: "例：学生時代"},
					{Name: "description", Kind: KindText, Required: true, MaxLength: 500, Description: "画像の説明・ストーリー", Placeholder: "この写真について説明してください"},
				},
			},
		},
	}
}
