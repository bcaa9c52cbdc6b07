package storage

import "time"

// 记录的执行状态
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// 核查请求的输入类型
const (
	InputText  = "text"
	InputImage = "image"
)

// CheckRecord 表示一次完整的声明核查请求及其结果。
//
// 一条记录对应一次 Check 调用：写入时为 running，流程结束后更新为 success/failed。
// 来源与进度日志以 JSON 字符串存放，前端与 CLI 直接解码展示。
type CheckRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 为本次请求的链路 ID，与审计记录、日志中的 trace_id 对应。
	TraceID string `gorm:"size:64;not null;uniqueIndex"`
	// InputKind 为输入类型（text/image）。
	InputKind string `gorm:"size:16;not null;index"`
	// Claim 为待核查的声明；图片输入时为占位文本。
	Claim string `gorm:"type:text;not null"`
	// Verdict 为解析出的结论（FACT/HOAX/MISLEADING/UNKNOWN）。
	Verdict string `gorm:"size:16;index"`
	// Confidence 为解析出的置信度（0~100），未知时为 -1。
	Confidence int `gorm:"not null;default:-1"`
	// SourcesJSON 为引用来源列表（JSON 数组）。
	SourcesJSON string `gorm:"type:text"`
	// Analysis 为核查员的完整结论。
	Analysis string `gorm:"type:text"`
	// FinalAnswer 为最终报告。
	FinalAnswer string `gorm:"type:text"`
	// StepsJSON 为进度日志（JSON 数组）。
	StepsJSON string `gorm:"type:text"`
	// Status 表示执行状态（running/success/failed）。
	Status string `gorm:"size:32;not null;index"`
	// Cached 表示结果来自缓存。
	Cached bool `gorm:"not null;default:false"`
	// ErrorMessage 存放失败时的错误信息。
	ErrorMessage string `gorm:"type:text"`
	// StartedAt/FinishedAt 表示请求起止时间。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

// AuditRecord 记录一次工具调用及其结果，用于审计与追溯。
//
// 一条审计记录对应流程中的一次工具执行（例如：search_news）。
// 入参与输出统一以 JSON 字符串存放，超长内容会被截断。
type AuditRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 用于串联一次核查请求，便于按链路聚合审计。
	TraceID string `gorm:"size:64;index"`
	// Action 表示执行的工具名。
	Action string `gorm:"size:128;not null;index"`
	// ParamsJSON 存放工具调用参数（JSON 字符串）。
	ParamsJSON string `gorm:"type:text"`
	// ResultJSON 存放工具输出（JSON 字符串）。
	ResultJSON string `gorm:"type:text"`
	// Status 表示执行状态（running/success/failed）。
	Status string `gorm:"size:32;not null;index"`
	// ErrorMessage 存放失败时的错误信息。
	ErrorMessage string `gorm:"type:text"`
	// StartedAt/FinishedAt 表示调用起止时间。统计耗时可用 FinishedAt-StartedAt。
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time `gorm:"index"`
	// CreatedAt 为记录写入数据库的时间，默认自动填充。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}
