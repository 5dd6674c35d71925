package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/voxtide/agentcore/pkg/orchestrator"
	"github.com/voxtide/agentcore/pkg/pipeline"
	"github.com/voxtide/agentcore/pkg/reasoning"
	"github.com/voxtide/agentcore/pkg/session"
	"github.com/voxtide/agentcore/pkg/synth"
	"github.com/voxtide/agentcore/pkg/transcriber"
)

const (
	SampleRate = 44100
	Channels   = 1
)

// supervisorHandler adapts a *session.Supervisor to orchestrator.TurnHandler
// so pkg/orchestrator (CaptureStream) and pkg/session can both depend on
// pkg/orchestrator's shared types without depending on each other.
type supervisorHandler struct {
	sup *session.Supervisor
}

func (h *supervisorHandler) HandleAudioTurn(ctx context.Context, pcm []byte, hint orchestrator.Language) (orchestrator.TurnOutcome, error) {
	turn, err := h.sup.HandleAudioTurn(ctx, pcm, hint)
	if err != nil {
		return orchestrator.TurnOutcome{}, err
	}
	return orchestrator.TurnOutcome{
		AssistantText: turn.AssistantText,
		Completed:     turn.Outcome == session.OutcomeCompleted,
	}, nil
}

func (h *supervisorHandler) Interrupt()      { h.sup.Interrupt() }
func (h *supervisorHandler) ResetInterrupt() { h.sup.ResetInterrupt() }

// malgoSink is a synth.AudioSink backed by a plain byte buffer drained by
// malgo's playback callback. Play blocks (politely, via polling) until the
// buffer it queued has been consumed or Stop is called, matching the
// synchronous Play contract pkg/pipeline.Player expects.
type malgoSink struct {
	mu      sync.Mutex
	buf     []byte
	stopped bool
}

func (s *malgoSink) Play(samples []byte) error {
	s.mu.Lock()
	s.stopped = false
	s.buf = append(s.buf, samples...)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		remaining := len(s.buf)
		stopped := s.stopped
		s.mu.Unlock()
		if remaining == 0 || stopped {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *malgoSink) Stop() {
	s.mu.Lock()
	s.buf = nil
	s.stopped = true
	s.mu.Unlock()
}

func (s *malgoSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) > 0
}

// pull copies up to len(dst) queued bytes into dst, zero-filling the rest,
// and returns how many real bytes were copied. Called from the malgo audio
// callback, never concurrently with itself.
func (s *malgoSink) pull(dst []byte) int {
	s.mu.Lock()
	n := copy(dst, s.buf)
	s.buf = s.buf[n:]
	s.mu.Unlock()
	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
	}
	return n
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")
	azureKey := os.Getenv("AZURE_TTS_KEY")
	azureRegion := os.Getenv("AZURE_TTS_REGION")

	sttProviderName := os.Getenv("STT_PROVIDER")
	if sttProviderName == "" {
		sttProviderName = "groq"
	}
	ttsProviderName := os.Getenv("TTS_PROVIDER")
	if ttsProviderName == "" {
		ttsProviderName = "edge"
	}
	llmModel := os.Getenv("LLM_MODEL")
	if llmModel == "" {
		llmModel = "gpt-4o"
	}

	lang := orchestrator.Language(os.Getenv("AGENT_LANGUAGE"))
	if lang == "" {
		lang = orchestrator.LanguageEn
	}

	// Transcriber selection.
	var t transcriber.Transcriber
	switch sttProviderName {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai STT")
		}
		t = transcriber.NewOpenAITranscriber(openaiKey, "whisper-1")
	case "groq":
		fallthrough
	default:
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq STT")
		}
		groqModel := os.Getenv("GROQ_STT_MODEL")
		if groqModel == "" {
			groqModel = "whisper-large-v3-turbo"
		}
		t = transcriber.NewGroqTranscriber(groqKey, groqModel)
	}

	// Synthesizer selection.
	var tts synth.Synthesizer
	switch ttsProviderName {
	case "azure":
		if azureKey == "" || azureRegion == "" {
			log.Fatal("Error: AZURE_TTS_KEY and AZURE_TTS_REGION must be set for azure TTS")
		}
		tts = synth.NewAzureSynthesizer(azureKey, azureRegion)
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai TTS")
		}
		tts = synth.NewOpenAISynthesizer(openaiKey, "tts-1")
	case "edge":
		fallthrough
	default:
		tts = synth.NewEdgeSynthesizer()
	}

	if openaiKey == "" {
		log.Fatal("Error: OPENAI_API_KEY must be set for the reasoning loop")
	}

	fmt.Printf("Configured: STT=%s | LLM=%s | TTS=%s | Language=%s\n", sttProviderName, llmModel, ttsProviderName, lang)
	fmt.Println("Voice Agent Started! Listening to microphone...")
	fmt.Println("Press Ctrl+C to exit")

	config := orchestrator.DefaultConfig()
	config.Language = lang
	config.SampleRate = SampleRate
	config.Channels = Channels
	config.VoiceStyle = orchestrator.VoiceByLanguage[lang]
	config.ModelID = llmModel

	voice := &atomic.Pointer[orchestrator.Voice]{}
	v := config.VoiceStyle
	voice.Store(&v)

	sink := &malgoSink{}
	p := pipeline.New(tts, sink, voice, nil)

	tools := reasoning.NewToolRegistry()
	tools.Register(reasoning.NewVoiceSelectorTool(voice))

	chatClient := reasoning.NewOpenAIChatClient(openaiKey, llmModel, "")
	loop := reasoning.NewLoop(chatClient, tools, nil)

	store, err := session.NewStore(config.PersistDir)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}

	sup := session.NewSupervisor(config, t, loop, p, store, nil)

	systemPrompt := "You are a helpful and concise voice assistant. Use short sentences suitable for speech."
	sup.History.Append(reasoning.Message{Role: reasoning.RoleSystem, Content: systemPrompt})
	sup.RestoreHistory()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	defer sup.Shutdown()

	capture := orchestrator.NewCaptureStream(ctx, &supervisorHandler{sup: sup}, sup.SessionID(), config, nil, nil)
	defer capture.Close()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer mctx.Uninit()

	var rmsMu sync.Mutex
	lastRMS := 0.0

	onSamples := func(pOutput, pInput []byte, frameCount uint32) {
		if pInput != nil {
			var sum float64
			for i := 0; i < len(pInput)-1; i += 2 {
				sample := int16(pInput[i]) | (int16(pInput[i+1]) << 8)
				f := float64(sample) / 32768.0
				sum += f * f
			}
			rms := math.Sqrt(sum / float64(len(pInput)/2))
			rmsMu.Lock()
			lastRMS = rms
			rmsMu.Unlock()

			_ = capture.Write(pInput)
		}
		if pOutput != nil {
			n := sink.pull(pOutput)
			if n > 0 {
				capture.RecordPlayedOutput(pOutput[:n])
				capture.NotifyBotSpeaking(sink.IsPlaying())
			} else {
				capture.NotifyBotSpeaking(false)
			}
		}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = Channels
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = Channels
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		log.Fatal(err)
	}

	go func() {
		for {
			rmsMu.Lock()
			level := lastRMS
			rmsMu.Unlock()

			meter := ""
			dots := int(level * 500)
			if dots > 40 {
				dots = 40
			}
			for i := 0; i < dots; i++ {
				meter += "|"
			}
			fmt.Printf("\r[MIC ENERGY: %-40s] RMS: %.5f", meter, level)
			time.Sleep(100 * time.Millisecond)
		}
	}()

	go func() {
		for event := range capture.Events() {
			switch event.Type {
			case orchestrator.EventUserSpeaking:
				fmt.Printf("\r\033[K[USER] Speaking...\n")
			case orchestrator.EventUserStopped:
				fmt.Printf("\r\033[K[STT] Processing...\n")
			case orchestrator.EventTurnStarted:
				fmt.Printf("\r\033[K[LLM] Thinking...\n")
			case orchestrator.EventTurnCompleted:
				outcome := event.Data.(orchestrator.TurnOutcome)
				fmt.Printf("\r\033[K[ASSISTANT] %s\n", outcome.AssistantText)
			case orchestrator.EventBargeIn:
				fmt.Printf("\r\033[K[INTERRUPTED] User started talking.\n")
				sink.Stop()
			case orchestrator.EventTurnFailed:
				fmt.Printf("\r\033[K[ERROR] %v\n", event.Data)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Printf("\nShutting down...\n")
}
