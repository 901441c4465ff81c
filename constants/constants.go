package constants

const (
	XmpNamespace       = "http://ns.adobe.com/xap/1.0/"
	App0MarkerId       = 0xE0
	App1MarkerId       = 0xE1
	PngXmpKeyword      = "XML:com.adobe.xmp"
	PngPromptKeyword   = "prompt"
	PngWorkflowKeyword = "workflow"
	JpegExtension      = "jpg"
	PngExtension       = "png"
	WebpExtension      = "webp"
	FilenamePrefix     = "ComfyUI"
	BatchNumToken      = "%batch_num%"
	OutputType         = "output"
)
