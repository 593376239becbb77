package field

import (
	"github.com/dyluth/aura/pkg/board"
)

// SkSL fragments. Every function works in grid units with the anchor at the
// origin; the effect body divides the pixel coordinate by unitPixelSize
// before calling them.

var squareDistanceSources = map[board.Metric]string{
	board.MetricCircular: `
float dist(vec2 p) {
    return length(p);
}
`,
	board.MetricSquare: `
float dist(vec2 p) {
    vec2 a = abs(p);
    return max(a.x, a.y);
}
`,
	board.MetricDiamond: `
float dist(vec2 p) {
    vec2 a = abs(p);
    return a.x + a.y;
}
`,
	board.MetricAlternating: `
float dist(vec2 p) {
    vec2 a = abs(p);
    return max(a.x, a.y) + 0.5 * min(a.x, a.y);
}
`,
}

var hexDistanceSources = map[board.Metric]string{
	board.MetricCircular: `
float dist(vec2 p) {
    return length(p);
}
`,
	board.MetricSquare: `
float dist(vec2 p) {
    vec2 h = pointy(p);
    float r = 2.0 * h.y / sqrt(3.0);
    float q = h.x - r * 0.5;
    return max(abs(q), max(abs(r), abs(q + r)));
}
`,
}

const squareSnapSource = `
vec2 snap(vec2 p) {
    return floor(p + 0.5);
}
`

const hexSnapSource = `
vec2 snap(vec2 p) {
    vec2 h = pointy(p);
    float r = 2.0 * h.y / sqrt(3.0);
    float q = h.x - r * 0.5;
    float s = -q - r;
    float rq = floor(q + 0.5);
    float rr = floor(r + 0.5);
    float rs = floor(s + 0.5);
    float dq = abs(rq - q);
    float dr = abs(rr - r);
    float ds = abs(rs - s);
    if (dq > dr && dq > ds) {
        rq = -rr - rs;
    } else if (dr > ds) {
        rr = -rq - rs;
    }
    return unpointy(vec2(rq + rr * 0.5, rr * sqrt(3.0) * 0.5));
}
`

func hexFrameSource(topology board.Topology) string {
	if topology == board.TopologyHexB {
		return `
vec2 pointy(vec2 p) {
    return vec2(p.y, -p.x);
}

vec2 unpointy(vec2 p) {
    return vec2(-p.y, p.x);
}
`
	}
	return `
vec2 pointy(vec2 p) {
    return p;
}

vec2 unpointy(vec2 p) {
    return p;
}
`
}

// hashSource is the per-index pseudo-random generator shared with the CPU
// side (see hash).
const hashSource = `
float hash(float n) {
    return fract(sin(n * 12.9898) * 43758.5453);
}

float hash2(vec2 p) {
    return hash(p.x * 157.0 + p.y * 113.0);
}
`

const falloffSource = `
float glowFalloff(float t, float bias) {
    float u = clamp(t, 0.0, 1.0);
    return pow(1.0 - u * u * (3.0 - 2.0 * u), bias);
}

float fadeFalloff(float t, float bias) {
    float u = 1.0 - clamp(t, 0.0, 1.0);
    return pow(u * u, bias);
}
`

const particleSource = `
float impulse(float k, float x) {
    float h = k * x;
    return h * exp(1.0 - h);
}

vec3 palette(float t) {
    return vec3(0.5) + vec3(0.5) * cos(6.2831853 * (t + vec3(0.0, 0.33, 0.67)));
}
`
