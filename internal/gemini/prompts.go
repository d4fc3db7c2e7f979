package gemini

// ScreeningSystemInstruction frames every evaluator call: the model acts as
// a language-screening assistant and answers in Traditional Chinese.
const ScreeningSystemInstruction = `你是一個語言篩檢助手，負責回答家長的問題與記錄兒童的語言發展情況，請提供幫助。請使用繁體中文回答。`

// ClassifyPromptTemplate asks the evaluator to judge a parent's answer
// against a question's pass criterion and reply with exactly one of the
// three verdict tokens. The format string expects the question text, the
// pass criterion, and the parent's answer.
const ClassifyPromptTemplate = `根據以下的通過標準，請判斷使用者的回答是否符合標準。

題目：%s
通過標準：%s
使用者回答：%s
請回覆「符合」、「不符合」或「不清楚」。`

// RephraseHintTemplate asks the evaluator to restate a question hint in
// simpler language. The result is shown verbatim as the retry prompt.
const RephraseHintTemplate = `請基於以下提示，用簡單易懂的語言重新表達：%s`
