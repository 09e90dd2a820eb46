/*
go-platenet recognises nine character license plates with a multi-head
convolutional classifier.  Each plate position is scored by its own output
head over a shared 43 character alphabet of province glyphs, digits and
letters, and decoding restricts every position to the characters a plate may
carry there.

This package holds the alphabet, the plate encoder and the types shared by
the model, training and serving packages.  The classifier itself lives in
model, decoding and scoring in postprocess, image preparation in preprocess
and the recognition service in serve.  An RKNN runtime for Rockchip NPUs is
provided by npu when built with the rknn tag.

See the platenet command in cmd/platenet for training and serving.
*/
package platenet
