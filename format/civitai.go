package format

import (
	"fmt"
	"strings"
	"unicode"
)

// civitaiSampler maps a sampler and scheduler to the name Civitai shows.
func civitaiSampler(sampler, scheduler string, hasScheduler bool) string {
	karras := scheduler == "karras"
	pick := func(plain, withKarras string) string {
		if karras {
			return withKarras
		}
		return plain
	}

	switch sampler {
	case "euler", "euler_cfg_pp":
		return "Euler"
	case "euler_ancestral", "euler_ancestral_cfg_pp":
		return "Euler a"
	case "heun", "heunpp2":
		return "Heun"
	case "dpm_2":
		return pick("DPM2", "DPM2 Karras")
	case "dpm_2_ancestral":
		return pick("DPM2 a", "DPM2 a Karras")
	case "lms":
		return pick("LMS", "LMS Karras")
	case "dpm_fast":
		return "DPM fast"
	case "dpm_adaptive":
		return "DPM adaptive"
	case "dpmpp_2s_ancestral":
		return pick("DPM++ 2S a", "DPM++ 2S a Karras")
	case "dpmpp_sde", "dpmpp_sde_gpu":
		return pick("DPM++ SDE", "DPM++ SDE Karras")
	case "dpmpp_2m":
		return pick("DPM++ 2M", "DPM++ 2M Karras")
	case "dpmpp_2m_sde", "dpmpp_2m_sde_gpu":
		return pick("DPM++ 2M SDE", "DPM++ 2M SDE Karras")
	case "dpmpp_3m_sde", "dpmpp_3m_sde_gpu":
		if scheduler == "exponential" {
			return "DPM++ 3M SDE Exponential"
		}
		return pick("DPM++ 3M SDE", "DPM++ 3M SDE Karras")
	case "lcm":
		return "LCM"
	case "ddim":
		return "DDIM"
	case "uni_pc", "uni_pc_bh2":
		return "UniPC"
	}

	if !hasScheduler {
		return sampler
	}
	return sampler + "_" + scheduler
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// Civitai renders the parameters in the layout Civitai reads from image
// descriptions: the prompt, the negative prompt and a line of
// comma-separated settings. Unset settings are left out.
func Civitai(p Params) string {
	var parts []string

	if p.Steps != nil {
		parts = append(parts, fmt.Sprintf("Steps: %d", *p.Steps))
	}
	if p.SamplerName != nil {
		parts = append(parts, "Sampler: "+civitaiSampler(*p.SamplerName, str(p.SchedulerName), p.SchedulerName != nil))
	}
	if p.SchedulerName != nil {
		parts = append(parts, "Schedule type: "+capitalize(*p.SchedulerName))
	}
	if p.Cfg != nil {
		parts = append(parts, "CFG scale: "+FormatFloat(*p.Cfg))
	}
	if p.Guidance != nil {
		parts = append(parts, "Distilled CFG Scale: "+FormatFloat(*p.Guidance))
	}
	if p.Seed != nil {
		parts = append(parts, fmt.Sprintf("Seed: %d", *p.Seed))
	}
	if p.Width != nil && p.Height != nil {
		parts = append(parts, fmt.Sprintf("Size: %dx%d", *p.Width, *p.Height))
	}
	if p.ModelPath != nil {
		parts = append(parts, "Model: "+PathStem(*p.ModelPath))
	}

	var b strings.Builder
	b.WriteString(str(p.Prompt))
	b.WriteString("\nNegative prompt: ")
	b.WriteString(str(p.NegativePrompt))
	b.WriteString("\n")
	b.WriteString(strings.Join(parts, ", "))
	return b.String()
}
