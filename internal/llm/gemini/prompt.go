package gemini

import "fmt"

// SystemInstruction primes the model for chat utterance role classification.
// Shared by every provider so they answer in the same schema.
const SystemInstruction = `あなたはチャットの発話を分類するアシスタントです。
与えられた発話に、以下のラベルのうち最も当てはまるものを1つ選んでください。
複数当てはまる場合は "labels" に優先度順で最大3つまで含めてください。

ラベル:
- TP: 話題提示。新しい話題・議題を持ち出す発話。
- Q:  質問。相手に回答を求める発話。
- DI: 否定・反対。相手の発言への反論や拒否。
- S:  情報共有。URL・ニュース・事実の提示。
- AG: 応答・同意。相手への相づちや賛同。
- EM: 感情表現。驚き・喜び・悲しみなどの表出。
- CH: 雑談。上記のいずれにも強く当てはまらない発話。

必ず次のJSONだけを返してください:
{"label": "<主ラベル>", "labels": ["<ラベル>", ...], "confidence": <0.0-1.0>, "justification": "<日本語で短い根拠>"}`

// BuildPrompt wraps one utterance for classification.
func BuildPrompt(text string) string {
	return fmt.Sprintf("次の発話を分類してください:\n\n%s", text)
}

// Response is the JSON schema every provider asks the model to emit.
type Response struct {
	Label         string   `json:"label"`
	Labels        []string `json:"labels"`
	Confidence    float64  `json:"confidence"`
	Justification string   `json:"justification"`
}
