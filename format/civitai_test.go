package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCivitai(t *testing.T) {
	got := Civitai(Params{
		Prompt:         String("Test Prompt"),
		NegativePrompt: String("Test Negative Prompt"),
		Seed:           Int(123),
		SamplerName:    String("Test Sampler"),
		SchedulerName:  String("Test Scheduler"),
		Steps:          Int(10),
		Cfg:            Float(1),
		Guidance:       Float(1),
		ModelPath:      String("/models/checkpoints/model.safetensors"),
		Width:          Int(512),
		Height:         Int(512),
	})

	assert.Equal(t, "Test Prompt\n"+
		"Negative prompt: Test Negative Prompt\n"+
		"Steps: 10, Sampler: Test Sampler_Test Scheduler, Schedule type: Test scheduler, "+
		"CFG scale: 1.0, Distilled CFG Scale: 1.0, Seed: 123, Size: 512x512, Model: model", got)
}

func TestCivitaiUnsetParams(t *testing.T) {
	assert.Equal(t, "\nNegative prompt: \n", Civitai(Params{}))

	// Size needs both dimensions
	got := Civitai(Params{Prompt: String("p"), Width: Int(512)})
	assert.Equal(t, "p\nNegative prompt: \n", got)
}

func TestCivitaiSampler(t *testing.T) {
	tests := []struct {
		sampler   string
		scheduler string
		want      string
	}{
		{"euler", "normal", "Euler"},
		{"euler_cfg_pp", "karras", "Euler"},
		{"euler_ancestral", "normal", "Euler a"},
		{"heunpp2", "normal", "Heun"},
		{"dpm_2", "normal", "DPM2"},
		{"dpm_2", "karras", "DPM2 Karras"},
		{"dpm_2_ancestral", "karras", "DPM2 a Karras"},
		{"lms", "karras", "LMS Karras"},
		{"dpm_fast", "karras", "DPM fast"},
		{"dpm_adaptive", "normal", "DPM adaptive"},
		{"dpmpp_2s_ancestral", "normal", "DPM++ 2S a"},
		{"dpmpp_sde_gpu", "karras", "DPM++ SDE Karras"},
		{"dpmpp_2m", "karras", "DPM++ 2M Karras"},
		{"dpmpp_2m_sde", "normal", "DPM++ 2M SDE"},
		{"dpmpp_3m_sde", "karras", "DPM++ 3M SDE Karras"},
		{"dpmpp_3m_sde_gpu", "exponential", "DPM++ 3M SDE Exponential"},
		{"lcm", "sgm_uniform", "LCM"},
		{"ddim", "ddim_uniform", "DDIM"},
		{"uni_pc_bh2", "normal", "UniPC"},
		{"ipndm", "beta", "ipndm_beta"},
	}

	for _, tt := range tests {
		t.Run(tt.sampler+"/"+tt.scheduler, func(t *testing.T) {
			got := Civitai(Params{SamplerName: String(tt.sampler), SchedulerName: String(tt.scheduler)})
			assert.Contains(t, got, "Sampler: "+tt.want+", ")
		})
	}

	// Without a scheduler the raw sampler name is used
	got := Civitai(Params{SamplerName: String("ipndm")})
	assert.Equal(t, "\nNegative prompt: \nSampler: ipndm", got)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Karras", capitalize("karras"))
	assert.Equal(t, "Sgm_uniform", capitalize("SGM_UNIFORM"))
	assert.Equal(t, "", capitalize(""))
}
