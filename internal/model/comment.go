package model

import "time"

// PendingComment は承認待ちのAI生成コメントを表す。
// 外部Webhookサービスが生成・採点したものを読み取り専用で受け取る。
// HTMLを含むフィールドはブラウザへ返す前にサニタイズされる。
type PendingComment struct {
	ID               string    `json:"id"`
	PostTitle        string    `json:"postTitle"`
	PostContent      string    `json:"postContent"`
	PostURL          string    `json:"postUrl"`
	Subreddit        string    `json:"subreddit"`
	GeneratedComment string    `json:"generatedComment"`
	OpportunityScore int       `json:"opportunityScore"`
	ProductName      string    `json:"productName"`
	AIAnalysis       string    `json:"aiAnalysis"`
	CreatedAt        time.Time `json:"createdAt"`
}

// BulkModerationResult は一括承認・一括却下の集計結果を表す。
// 一部失敗時もロールバックは行わない（成功分は外部サービス側で
// 既に適用済みのため）。
type BulkModerationResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}
