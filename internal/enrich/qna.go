package enrich

import (
	"encoding/json"

	"github.com/sells-group/localrank/internal/model"
)

type qnaAnswer struct {
	AnswerText  string `json:"answer_text"`
	Timestamp   string `json:"timestamp"`
	ProfileName string `json:"profile_name"`
}

type qnaItem struct {
	QuestionText string `json:"question_text"`
	Timestamp    string `json:"timestamp"`
	ProfileName  string `json:"profile_name"`
	Items        []qnaAnswer `json:"items"`
}

// parseQuestions flattens the nested question/answer payload into one record
// per question-answer pair. A question with no answers still yields one
// record with empty answer fields.
func parseQuestions(raw json.RawMessage, placeID string) []model.QuestionAnswer {
	var pairs []model.QuestionAnswer
	for _, page := range decodePages(raw, "qna") {
		for _, q := range decodeItems[qnaItem](page, "qna") {
			if q.QuestionText == "" {
				continue
			}
			base := model.QuestionAnswer{
				PlaceID:         placeID,
				QuestionText:    q.QuestionText,
				QuestionAt:      parseTimestamp(q.Timestamp),
				QuestionProfile: q.ProfileName,
			}
			if len(q.Items) == 0 {
				pairs = append(pairs, base)
				continue
			}
			for _, a := range q.Items {
				pair := base
				pair.AnswerText = a.AnswerText
				pair.AnswerAt = parseTimestamp(a.Timestamp)
				pair.AnswerProfile = a.ProfileName
				pairs = append(pairs, pair)
			}
		}
	}
	return pairs
}
