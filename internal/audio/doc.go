// Package audio turns source files into analysis-ready PCM.
//
// The Decoder interface hides how compressed audio becomes interleaved float
// samples; FFmpegDecoder shells out to ffmpeg. Preprocess and ShortenAudio
// prepare the decoded signal for the key/BPM engine and the feature stage,
// and the file helpers decide which inputs are audio at all.
package audio
