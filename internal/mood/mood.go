package mood

// 情绪标签与各后端合成参数之间的映射。
// 映射表是纯数据，新增后端词表时只需加一张表，不动控制流。

// Tag 是文稿中标注的情绪标签，共 9 个固定取值。
type Tag string

const (
	Gentle    Tag = "gentle"
	Happy     Tag = "happy"
	Confident Tag = "confident"
	Expectant Tag = "expectant"
	Confused  Tag = "confused"
	Shocked   Tag = "shocked"
	Angry     Tag = "angry"
	Sad       Tag = "sad"
	Resigned  Tag = "resigned"
)

// Params 是一个情绪标签对应的合成参数集合。
// 不同后端取用不同子集：有原生控制参数的用数值项，
// 指令控制类模型用 Instruction，离散情绪词表类用 Emotion。
type Params struct {
	Speed       float64
	Pitch       float64
	Volume      float64
	Emotion     string
	Instruction string
}

// table 是 9 个情绪标签到合成参数的固定映射。
var table = map[Tag]Params{
	Gentle:    {Speed: 1.0, Pitch: 0, Volume: 1.0, Emotion: "neutral", Instruction: "语速适中，语气温柔平和"},
	Happy:     {Speed: 1.1, Pitch: 2, Volume: 1.0, Emotion: "happy", Instruction: "语速稍快，语气轻快愉悦"},
	Confident: {Speed: 1.0, Pitch: 0, Volume: 1.1, Emotion: "neutral", Instruction: "语速适中，语气坚定自信"},
	Expectant: {Speed: 1.1, Pitch: 4, Volume: 1.0, Emotion: "happy", Instruction: "语速稍快，语气充满期待和好奇"},
	Confused:  {Speed: 0.9, Pitch: 2, Volume: 1.0, Emotion: "surprised", Instruction: "语速稍慢，语气带有疑问和困惑"},
	Shocked:   {Speed: 1.2, Pitch: 8, Volume: 1.1, Emotion: "surprised", Instruction: "语速较快，语气惊讶震惊"},
	Angry:     {Speed: 1.2, Pitch: -4, Volume: 1.2, Emotion: "angry", Instruction: "语速较快，语气愤怒不满"},
	Sad:       {Speed: 0.8, Pitch: -6, Volume: 0.9, Emotion: "sad", Instruction: "语速较慢，语气悲伤低沉"},
	Resigned:  {Speed: 1.0, Pitch: -2, Volume: 1.0, Emotion: "sad", Instruction: "语速适中，语气无奈平淡"},
}

// indexTTSVocab 是内部情绪标签到 IndexTTS 情绪向量词表的映射。
// IndexTTS 支持: Neutral, Happy, Sad, Angry, Fearful, Disgusted, Surprised。
var indexTTSVocab = map[Tag]string{
	Gentle:    "Neutral",
	Happy:     "Happy",
	Confident: "Neutral",
	Expectant: "Happy",
	Confused:  "Surprised",
	Shocked:   "Surprised",
	Angry:     "Angry",
	Sad:       "Sad",
	Resigned:  "Sad",
}

// Tags 按固定顺序返回全部情绪标签。
func Tags() []Tag {
	return []Tag{Gentle, Happy, Confident, Expectant, Confused, Shocked, Angry, Sad, Resigned}
}

// Valid 报告 t 是否为已知情绪标签。
func Valid(t Tag) bool {
	_, ok := table[t]
	return ok
}

// Lookup 返回情绪标签对应的合成参数。
func Lookup(t Tag) (Params, bool) {
	p, ok := table[t]
	return p, ok
}

// IndexTTSVector 把内部情绪标签翻译为 IndexTTS 词表中的情绪向量。
// 未映射的标签回退到 Neutral。
func IndexTTSVector(t Tag) string {
	if v, ok := indexTTSVocab[t]; ok {
		return v
	}
	return "Neutral"
}
