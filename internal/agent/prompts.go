package agent

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// ResearcherSystemPrompt 研究员节点的系统提示词
const ResearcherSystemPrompt = `Kamu adalah Peneliti Senior. Tugasmu adalah mencari fakta keras (hard facts) untuk memverifikasi klaim pengguna.
Waktu saat ini: {time}.
Gunakan tool pencarian jika diperlukan. Jangan menyimpulkan dulu, cukup kumpulkan data.`

// AnalystSystemPrompt 核查员节点的系统提示词
const AnalystSystemPrompt = `Kamu adalah Verifikator Fakta (Fact Checker) yang kritis.
Tugasmu:
1. Baca klaim pengguna.
2. Baca hasil pencarian yang diberikan. Jika hasil pencarian berisi field "error", anggap data pendukung tidak tersedia.
3. Tentukan apakah klaim tersebut: BENAR (FACT), SALAH (HOAX), atau MENYESATKAN (MISLEADING).
4. Jelaskan alasan logismu berdasarkan data yang ada.
5. Tutup dengan baris "Verdict: FACT", "Verdict: HOAX" atau "Verdict: MISLEADING" dan baris "Confidence: <0-100>%".

PENTING: Jangan membuat format laporan akhir dulu. Fokus pada analisis fakta.`

// AnalystUserPrompt 核查员节点的输入模板
const AnalystUserPrompt = `Klaim pengguna:
{claim}

Hasil pencarian:
{evidence}`

// WriterSystemPrompt 撰稿人节点的系统提示词
const WriterSystemPrompt = `Kamu adalah Editor Berita yang ramah dan jelas.
Tugasmu adalah menjawab pertanyaan user berdasarkan analisis verifikator.

Format jawabanmu:
1. <b>Status</b>: [HOAX / FAKTA / DISINFORMASI] (Gunakan Huruf Kapital dan Bold)
2. <b>Penjelasan</b>: Rangkuman singkat dan padat.
3. <b>Sumber</b>: Tautan pendukung bila ada.
4. <b>Kesimpulan</b>: Saran untuk pengguna.

Gunakan Bahasa Indonesia yang baik dan tidak kaku.`

// WriterUserPrompt 撰稿人节点的输入模板
const WriterUserPrompt = `Pertanyaan User: {claim}
Analisis Verifikator: {analysis}`

// WriterEvidencePrompt 多证据模式下撰稿人节点的输入模板
const WriterEvidencePrompt = `Pertanyaan User: {claim}
Analisis Verifikator: {analysis}
Data Pencarian: {evidence}`

// VisionClaimPrompt 图片提取文本后生成的用户消息
const VisionClaimPrompt = "Verifikasi klaim berikut yang diambil dari gambar:\n\n%s"

// NoSearchData 没有任何搜索结果时交给核查员的占位内容
const NoSearchData = "Tidak ada data pencarian."

// NewResearcherTemplate 研究员模板：System + 历史消息
func NewResearcherTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(ResearcherSystemPrompt),
		// "history" 为必填，研究员至少需要一条用户消息
		schema.MessagesPlaceholder("history", false),
	)
}

// NewAnalystTemplate 核查员模板：System + 声明与证据
func NewAnalystTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(AnalystSystemPrompt),
		schema.UserMessage(AnalystUserPrompt),
	)
}

// NewWriterTemplate 撰稿人模板，withEvidence 为 true 时附带最近一次搜索结果
func NewWriterTemplate(withEvidence bool) prompt.ChatTemplate {
	user := WriterUserPrompt
	if withEvidence {
		user = WriterEvidencePrompt
	}
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(WriterSystemPrompt),
		schema.UserMessage(user),
	)
}
