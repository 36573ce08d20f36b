// Package audio holds the small amount of PCM handling TikTalk needs around
// recorded clips: WAV encoding and decoding, down-mixing and resampling to
// the 16 kHz mono format speech models expect, and an energy-based voice
// activity filter that trims silence before transcription.
package audio
