package model

import "time"

// Interest はユーザーが購読できるトピックを表す。
// NewsAPIカテゴリに紐付くものと、RSSフィードURLに紐付くものがある。
type Interest struct {
	ID          string
	Name        string
	Slug        string
	Description string
	// NewsAPICategory はNewsAPIのカテゴリコード（business, technology等）。
	// 空の場合はNewsAPIからの取得対象外。
	NewsAPICategory string
	// FeedURL はRSS/Atomフィードで見出しを取得するトピックのフィードURL。
	// 空の場合はRSS取得対象外。
	FeedURL      string
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PredefinedInterests は起動時にシードされる定義済みトピック。
var PredefinedInterests = []Interest{
	{Name: "Technology", Slug: "technology", Description: "Tech news, gadgets, and innovation", NewsAPICategory: "technology", DisplayOrder: 1},
	{Name: "Business", Slug: "business", Description: "Markets, companies, and the economy", NewsAPICategory: "business", DisplayOrder: 2},
	{Name: "Science", Slug: "science", Description: "Research and discoveries", NewsAPICategory: "science", DisplayOrder: 3},
	{Name: "Health", Slug: "health", Description: "Medicine and wellbeing", NewsAPICategory: "health", DisplayOrder: 4},
	{Name: "Sports", Slug: "sports", Description: "Scores and sports news", NewsAPICategory: "sports", DisplayOrder: 5},
	{Name: "Entertainment", Slug: "entertainment", Description: "Film, music, and culture", NewsAPICategory: "entertainment", DisplayOrder: 6},
	{Name: "General", Slug: "general", Description: "Top stories across all topics", NewsAPICategory: "general", DisplayOrder: 7},
}
