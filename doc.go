/*
yolov5 provides Go language bindings for real-time YOLOv5 object
detection through NVIDIA TensorRT.  It loads serialized TensorRT engines
built from the standard YOLOv5 ONNX export and runs the full detection
pipeline: letterbox pre-processing on the GPU or CPU, batched inference,
output decoding with non-maximum suppression and mapping of bounding
boxes back to the original image coordinates.

The package requires the CUDA toolkit, TensorRT and the libtrtshim
support library built from the csrc subdirectory.  OpenCV is used
through gocv for the image input path; a pure Go input path accepting
the standard library image.Image is also provided.

Typical usage is to create a Detector, Init it, LoadEngine a serialized
engine file and call Detect per frame.  Use a Pool to share detectors
across goroutines.
*/
package yolov5
