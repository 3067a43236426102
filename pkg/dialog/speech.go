package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/utterance"
)

// say queues text. A listening prompt becomes the session's last prompt and
// reopens the microphone once the queue drains.
func (s *Supervisor) say(text string, listen bool) {
	if text == "" {
		return
	}
	if listen {
		s.session().SetPrompt(text)
	}
	s.queue = append(s.queue, speechItem{text: text, listen: listen})
	if !s.speaking {
		s.speakNext()
	}
}

func (s *Supervisor) speakNext() {
	if len(s.queue) == 0 {
		s.speaking = false
		s.drained()
		return
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	s.speaking = true
	s.lastListen = item.listen
	s.stopListening()
	s.disarmSilence()

	s.speakSeq++
	seq := s.speakSeq
	ctx, cancel := context.WithTimeout(s.flowCtx, s.cfg.SpeakTimeout)
	s.speakCancel = cancel
	s.emit(events.PromptSpoken, &events.PromptData{Text: item.text})
	s.record(transcript.RoleAssistant, item.text)

	speaker := s.speaker
	s.run(func() {
		err := speaker.Speak(ctx, item.text)
		cancel()
		s.post(event{kind: evSpeechDone, seq: seq, err: err})
	})
}

func (s *Supervisor) onSpeechDone(seq uint64, err error) {
	if seq != s.speakSeq || !s.speaking {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.WarnContext(s.ctx, "speech failed", slog.String("error", err.Error()))
	}
	s.speakCancel = nil
	s.speakNext()
}

// drained runs once the speech queue is empty.
func (s *Supervisor) drained() {
	if fn := s.afterSpeech; fn != nil {
		s.afterSpeech = nil
		fn()
		return
	}
	s.resume()
}

// resume reopens the microphone after a listening prompt.
func (s *Supervisor) resume() {
	if s.busy || s.suppressResume || s.micDenied || !s.lastListen {
		return
	}
	s.startListening()
	s.armSilence()
}

// whenQuiet runs fn now, or after the queued speech has been played.
func (s *Supervisor) whenQuiet(fn func()) {
	if !s.speaking && len(s.queue) == 0 {
		fn()
		return
	}
	s.afterSpeech = fn
}

// interrupt cancels the current utterance and drops the queue.
func (s *Supervisor) interrupt() {
	s.queue = nil
	if !s.speaking {
		return
	}
	s.speakSeq++
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
	s.speaking = false
}

// cutSpeech interrupts speech before handling new input. A navigation that
// was waiting for the speech to end happens now and swallows the input.
func (s *Supervisor) cutSpeech() bool {
	s.interrupt()
	if fn := s.afterSpeech; fn != nil {
		s.afterSpeech = nil
		fn()
		return true
	}
	return false
}

func (s *Supervisor) startListening() {
	if s.listening || s.micDenied {
		return
	}
	if err := s.rec.Start(s.ctx, s.cfg.Locale); err != nil {
		slog.WarnContext(s.ctx, "recognizer start failed", slog.String("error", err.Error()))
		return
	}
	s.listening = true
}

func (s *Supervisor) stopListening() {
	if !s.listening {
		return
	}
	s.listening = false
	if err := s.rec.Stop(context.WithoutCancel(s.ctx)); err != nil {
		slog.WarnContext(s.ctx, "recognizer stop failed", slog.String("error", err.Error()))
	}
}

func (s *Supervisor) armSilence() {
	s.disarmSilence()
	var d time.Duration
	switch s.session().CurrentState() {
	case NoFlow:
		return
	case WizardActive:
		d = s.cfg.WizardTimeout
	default:
		d = s.cfg.MenuTimeout
	}
	seq := s.silenceSeq
	s.silenceStop = s.after(d, func() { s.post(event{kind: evSilence, seq: seq}) })
}

func (s *Supervisor) disarmSilence() {
	s.silenceSeq++
	if s.silenceStop != nil {
		s.silenceStop()
		s.silenceStop = nil
	}
}

// onSilence replays the last prompt on the first timeout. The second one
// speaks help and restarts the location's flow.
func (s *Supervisor) onSilence(seq uint64) {
	if seq != s.silenceSeq || s.speaking || s.busy {
		return
	}
	s.silenceStop = nil
	sess := s.session()

	if sess.Retries() == 0 {
		sess.SetRetries(1)
		s.emit(events.SilenceTimeout, &events.SilenceTimeoutData{RetryCount: 1})
		prompt := sess.Prompt()
		if prompt == "" {
			prompt = s.menuPrompt()
		}
		if prompt == "" {
			s.armSilence()
			return
		}
		s.say(prompt, true)
		return
	}

	sess.SetRetries(0)
	s.emit(events.SilenceTimeout, &events.SilenceTimeoutData{RetryCount: 2, Escalated: true})
	s.say(promptHelp, false)
	s.restartFlow("silence")
}

func (s *Supervisor) onInterim(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.interim = text
	s.debounced = ""
	s.emit(events.SpeechPartial, &events.SpeechData{Transcript: text, Location: s.session().Location})
	s.disarmSilence()
	s.stopDebounce()
	seq := s.debounceSeq
	s.debounceStop = s.after(s.cfg.Debounce, func() { s.post(event{kind: evDebounce, seq: seq}) })
}

func (s *Supervisor) stopDebounce() {
	s.debounceSeq++
	if s.debounceStop != nil {
		s.debounceStop()
		s.debounceStop = nil
	}
}

func (s *Supervisor) onDebounce(seq uint64) {
	if seq != s.debounceSeq {
		return
	}
	s.debounceStop = nil
	text := s.interim
	s.interim = ""
	s.debounced = utterance.Normalize(text)
	s.onUtterance(text)
}

func (s *Supervisor) onFinal(text string) {
	s.stopDebounce()
	s.interim = ""
	// The recognizer may still finalize what the debounce already handled.
	if s.debounced != "" && utterance.Normalize(text) == s.debounced {
		s.debounced = ""
		return
	}
	s.debounced = ""
	s.onUtterance(text)
}

func (s *Supervisor) onRecognitionError(kind string) {
	switch kind {
	case "no-speech", "aborted":
		return
	case "not-allowed", "service-not-allowed":
		s.listening = false
		s.micDenied = true
		s.disarmSilence()
		s.emit(events.SystemError, &events.ErrorData{Where: "recognition", Error: kind})
		s.say(promptMicDenied, false)
		return
	}
	slog.WarnContext(s.ctx, "recognition error, restarting", slog.String("kind", kind))
	s.emit(events.SystemError, &events.ErrorData{Where: "recognition", Error: kind})
	s.listening = false
	if !s.speaking && !s.busy && !s.suppressResume {
		s.startListening()
	}
}
