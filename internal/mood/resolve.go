package mood

import (
	"github.com/iabetor/scriptvoice/internal/config"
)

// Options 控制情绪参数如何并入音色配置，取值来自 emotion 配置段。
type Options struct {
	// UseTextMood 使用文稿标注的情绪参数。
	UseTextMood bool
	// PassBaseParams 在 UseTextMood=false 时仍传递语速/音调/音量，
	// 让后端自行推断情绪。
	PassBaseParams bool
}

// Resolve 把情绪标签 t 的参数按后端 provider 的能力并入音色配置副本并返回。
// vp 本身不会被修改；配置里显式设置的字段优先于情绪推导值。
//
// 四种开关组合：
//  1. UseTextMood=true                     — 按后端能力应用完整参数集
//  2. UseTextMood=false, PassBaseParams=true  — 只传语速/音调/音量
//  3. UseTextMood=false, PassBaseParams=false — 不带任何情绪相关字段
func Resolve(vp config.VoiceProfile, t Tag, provider string, opts Options) config.VoiceProfile {
	p, ok := table[t]
	if !ok {
		p = table[Gentle]
	}

	switch provider {
	case config.ProviderMiniMax:
		return resolveMiniMax(vp, p, opts)
	case config.ProviderSiliconFlow:
		return resolveSiliconFlow(vp, t, p, opts)
	case config.ProviderQwen:
		return resolveQwen(vp, p, opts)
	}
	// 离线后端没有情绪控制参数，原样返回。
	return vp
}

// resolveMiniMax 应用数值参数与离散情绪标签。
func resolveMiniMax(vp config.VoiceProfile, p Params, opts Options) config.VoiceProfile {
	if opts.UseTextMood {
		fillBaseParams(&vp, p)
		if vp.Emotion == "" {
			vp.Emotion = p.Emotion
		}
		return vp
	}
	if opts.PassBaseParams {
		fillBaseParams(&vp, p)
	}
	// 不传情绪标签，后端自行推断。
	vp.Emotion = ""
	return vp
}

// resolveSiliconFlow 应用情绪向量与语速。
// 向量是否真正随请求发送由适配器按模型能力决定。
func resolveSiliconFlow(vp config.VoiceProfile, t Tag, p Params, opts Options) config.VoiceProfile {
	if opts.UseTextMood {
		if vp.EmoVector == "" {
			vp.EmoVector = IndexTTSVector(t)
		}
		if vp.EmoAlpha == 0 {
			vp.EmoAlpha = 0.7
		}
		if vp.Speed == 0 {
			vp.Speed = p.Speed
		}
		return vp
	}
	vp.EmoVector = ""
	vp.EmoAlpha = 0
	if opts.PassBaseParams && vp.Speed == 0 {
		vp.Speed = p.Speed
	}
	return vp
}

// resolveQwen 通过风格描述指令控制情绪。
func resolveQwen(vp config.VoiceProfile, p Params, opts Options) config.VoiceProfile {
	if opts.UseTextMood {
		if vp.Instructions != "" {
			// 在原有指令基础上追加情绪描述
			vp.Instructions = vp.Instructions + "，" + p.Instruction
		} else {
			vp.Instructions = p.Instruction
		}
		vp.OptimizeInstructions = true
		return vp
	}
	if !opts.PassBaseParams {
		// 清除指令，让后端完全自行判断
		vp.Instructions = ""
		vp.OptimizeInstructions = false
	}
	return vp
}

// fillBaseParams 把情绪推导的语速/音调/音量填入未显式设置的字段。
func fillBaseParams(vp *config.VoiceProfile, p Params) {
	if vp.Speed == 0 {
		vp.Speed = p.Speed
	}
	if vp.Pitch == 0 {
		vp.Pitch = p.Pitch
	}
	if vp.Volume == 0 {
		vp.Volume = p.Volume
	}
}
